package sqlinline

const QInsertImageSet = `--sql 3c1f6a2e-9b47-4d0e-8e15-6a7b2c9d4f10
insert into image_sets(
  id,
  owner_id,
  original_path,
  breed_label,
  stage_paths,
  run_state,
  correlation,
  created_at,
  updated_at
) values (
  gen_random_uuid(),
  $1::text,
  $2::text,
  $3::text,
  coalesce($4::jsonb, '{}'::jsonb),
  $5::text,
  $6::text,
  now(),
  now()
) returning id::text, created_at;
`

const QUpdateImageSetStages = `--sql 8e2d4b61-0c3a-4f7e-a5d9-1b6c3e8f2a47
update image_sets
set stage_paths = stage_paths || $2::jsonb,
    run_state = $3::text,
    updated_at = now()
where id = $1::uuid;
`

const QUpdateImageSetState = `--sql b7a90c14-5e2f-4d38-9c61-0f4e8a2b7d53
update image_sets
set run_state = $2::text,
    updated_at = now()
where id = $1::uuid;
`

const QSelectImageSetByID = `--sql 5d8c2f97-1a4b-4e6d-b0c3-7f9e2a1d5b68
select
  id::text,
  owner_id,
  original_path,
  breed_label,
  stage_paths,
  run_state,
  correlation,
  created_at,
  updated_at
from image_sets
where id = $1::uuid
limit 1;
`

const QListImageSetsByOwner = `--sql e4b17d30-6c9a-4f25-8d1e-3a5c7b9f0e82
select
  id::text,
  owner_id,
  original_path,
  breed_label,
  stage_paths,
  run_state,
  correlation,
  created_at,
  updated_at
from image_sets
where owner_id = $1::text
order by created_at desc
limit $2::int;
`
