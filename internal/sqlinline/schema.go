package sqlinline

const QEnsureImageSets = `--sql 1f7c9e42-3b6d-4a80-9e25-c8d1f0a4b7e3
create table if not exists image_sets (
  id            uuid primary key default gen_random_uuid(),
  owner_id      text not null,
  original_path text not null,
  breed_label   text not null default '',
  stage_paths   jsonb not null default '{}'::jsonb,
  run_state     text not null default 'STARTED',
  correlation   text not null default '',
  created_at    timestamptz not null default now(),
  updated_at    timestamptz not null default now()
);
`

const QEnsureIntegrationTokens = `--sql 9a3e5c70-2d8f-4b16-a7c4-e0b9d6f3a215
create table if not exists integration_tokens (
  id          uuid primary key default gen_random_uuid(),
  provider    text not null unique,
  token       text not null,
  properties  jsonb not null default '{}'::jsonb,
  created_at  timestamptz not null default now(),
  updated_at  timestamptz not null default now()
);
`
