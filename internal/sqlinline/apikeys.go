package sqlinline

const QInsertAPIKey = `--sql 183aad3a-a06e-46ba-9b8d-7b8ad39e1906
insert into api_keys(id, profile_id, name, secret, capabilities, revoked, created_at)
values (gen_random_uuid(), $1::uuid, $2::text, $3::text, $4::text[], false, now())
returning id, created_at;
`

const QListAPIKeysByProfile = `--sql 5b5d73fe-4258-4ef4-964d-d7a00145d259
select id, name, capabilities, revoked, created_at
from api_keys
where profile_id = $1::uuid
order by created_at desc;
`

const QRevokeAPIKey = `--sql ede9e3ff-d2b3-45dd-819a-dd3a239e0c51
update api_keys
set revoked = true, updated_at = now()
where id = $1::uuid and profile_id = $2::uuid
returning id;
`
