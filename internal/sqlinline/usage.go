package sqlinline

const QInsertUsageEvent = `--sql 14e9e6b2-48e0-492e-be54-abcf322b44f9
insert into usage_events(id, profile_id, event_type, auth_mode, country, success, created_at, properties)
values (gen_random_uuid(), $1::uuid, $2::text, $3::text, nullif($4::text, ''), $5::boolean, now(), coalesce($6::jsonb, '{}'::jsonb));
`
