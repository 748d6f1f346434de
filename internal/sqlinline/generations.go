package sqlinline

const QInsertGeneration = `--sql 11a921f9-6206-4024-894b-985218b18ac1
insert into generations(
  id, owner_id, public_url, storage_key, prompt, aspect_ratio, kind, style,
  source_image_url, source_image_strength, scale, credit_cost, created_at
)
values (
  gen_random_uuid(), $1::uuid, $2::text, $3::text, nullif($4::text, ''),
  nullif($5::text, ''), $6::text, nullif($7::text, ''), nullif($8::text, ''),
  $9::numeric, $10::int, $11::int, now()
)
returning id, created_at;
`

const QListGenerationsByOwner = `--sql f6f81178-8ab4-49db-b5a9-c58a43feee66
select id, public_url, storage_key, coalesce(prompt, ''), coalesce(aspect_ratio, ''),
       kind, coalesce(style, ''), coalesce(source_image_url, ''),
       coalesce(source_image_strength, 0), coalesce(scale, 0), credit_cost, created_at
from generations
where owner_id = $1::uuid
order by created_at desc
limit $2::int;
`

const QSelectGenerationForOwner = `--sql 76ed6d01-cda4-4317-894c-69f663ea8511
select id, public_url, storage_key, kind, credit_cost, created_at
from generations
where id = $1::uuid and owner_id = $2::uuid;
`

const QDeleteGeneration = `--sql 50bbdb68-0b5b-4ee0-809c-df40583b1c55
delete from generations
where id = $1::uuid and owner_id = $2::uuid
returning storage_key;
`

const QSelectGenerationByStorageKey = `--sql 51c04a5c-3abd-44b0-8c23-599bb57807d3
select id from generations where storage_key = $1::text limit 1;
`

const QListGenerationStorageKeys = `--sql fcfe548e-f22a-4900-9c07-440374863955
select id, storage_key from generations order by created_at desc;
`
