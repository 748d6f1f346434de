package sqlinline

const QSelectCallerByProfile = `--sql e665dab7-3e55-42f5-a573-ce701f0eefb8
select p.id, p.email, p.notifications_enabled, c.balance
from profiles p
join credits c on c.profile_id = p.id
where p.id = $1::uuid;
`

const QSelectAPIKey = `--sql f645c279-5949-463c-97d3-fd21bfc80d5d
select id, profile_id, name, capabilities, revoked
from api_keys
where secret = $1::text
limit 1;
`
