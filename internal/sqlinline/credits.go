package sqlinline

// QReserveCredits atomically debits the balance iff it covers the cost.
// Zero rows returned means the reservation was refused.
const QReserveCredits = `--sql f64a4464-729b-4590-85ae-36d4d7e1ecb2
update credits
set balance = balance - $2::int, updated_at = now()
where profile_id = $1::uuid and balance >= $2::int
returning balance;
`

const QRefundCredits = `--sql c26e77cc-181e-49b7-8803-2dc6095eab1b
update credits
set balance = balance + $2::int, updated_at = now()
where profile_id = $1::uuid
returning balance;
`

const QSelectBalance = `--sql 70bc299a-5fc4-4928-8690-6018368c8080
select balance from credits where profile_id = $1::uuid;
`

const QGrantCredits = `--sql 9c9ded86-9ac0-4f9b-9dc2-dcebdfd47790
update credits
set balance = balance + $2::int, updated_at = now()
where profile_id = $1::uuid
returning balance;
`
