package sqlinline

const QInsertJob = `--sql 594fb86f-7b99-441a-82de-32387b9ca60b
insert into jobs (id, user_id, mode, status, input_url, input_filename, prompt, prompt_override, progress, created_at, updated_at)
values ($1::uuid, $2::uuid, $3::text, $4::text, $5::text, $6::text, $7::text, $8::text, 0, $9::timestamptz, $9::timestamptz);
`

const QSelectJobByID = `--sql aa024b51-ccab-4a12-8bea-f60c5b0d8fce
select id::text, user_id::text, mode, status, input_url, input_filename, prompt, prompt_override,
       coalesce(result_urls, '[]'::jsonb), coalesce(thumbnail_url, ''), coalesce(backend_job_id, ''),
       progress, coalesce(error_message, ''), processing_time_seconds,
       created_at, started_at, completed_at, updated_at
from jobs
where id = $1::uuid;
`

const QSelectJobForUser = `--sql 30410dd6-f99f-4f3d-adb6-cf2f33240eb7
select id::text, user_id::text, mode, status, input_url, input_filename, prompt, prompt_override,
       coalesce(result_urls, '[]'::jsonb), coalesce(thumbnail_url, ''), coalesce(backend_job_id, ''),
       progress, coalesce(error_message, ''), processing_time_seconds,
       created_at, started_at, completed_at, updated_at
from jobs
where id = $1::uuid
  and user_id = $2::uuid;
`

const QListJobsByUser = `--sql 574f9af6-0645-47f7-80c1-b98f778e4a3a
select id::text, user_id::text, mode, status, input_url, input_filename, prompt, prompt_override,
       coalesce(result_urls, '[]'::jsonb), coalesce(thumbnail_url, ''), coalesce(backend_job_id, ''),
       progress, coalesce(error_message, ''), processing_time_seconds,
       created_at, started_at, completed_at, updated_at
from jobs
where user_id = $1::uuid
order by created_at desc, id desc
limit $2::int
offset $3::int;
`

const QMarkJobProcessing = `--sql b59cd3f7-91ae-4838-a9d4-ce149130edea
update jobs
set status = 'processing',
    started_at = $2::timestamptz,
    progress = 0,
    updated_at = now()
where id = $1::uuid
  and status in ('pending', 'queued');
`

const QSetJobBackendID = `--sql 22bc9705-ba58-424c-affe-3b25dad07916
update jobs
set backend_job_id = $2::text,
    updated_at = now()
where id = $1::uuid;
`

const QSetJobProgress = `--sql 65be1cff-7514-4ce6-bbc6-d6f93eb525b6
update jobs
set progress = greatest(0, least(100, $2::int)),
    updated_at = now()
where id = $1::uuid
  and status = 'processing';
`

const QCompleteJob = `--sql f791b932-9e92-4fe0-8002-9cbc3e50da0d
update jobs
set status = 'completed',
    result_urls = $2::jsonb,
    thumbnail_url = nullif($3::text, ''),
    progress = 100,
    error_message = null,
    completed_at = $4::timestamptz,
    processing_time_seconds = $5::int,
    updated_at = now()
where id = $1::uuid
  and status = 'processing';
`

const QFailJob = `--sql 27cceec8-21a3-45df-b71a-0a710d5b5ce3
update jobs
set status = 'failed',
    error_message = $2::text,
    result_urls = null,
    thumbnail_url = null,
    completed_at = $3::timestamptz,
    updated_at = now()
where id = $1::uuid
  and status = 'processing';
`

const QCancelJob = `--sql 284e8b77-4ba1-4966-aebd-bf9b6d15508e
update jobs
set status = 'cancelled',
    updated_at = now()
where id = $1::uuid
  and user_id = $2::uuid
  and status in ('pending', 'queued');
`

const QListStaleJobs = `--sql 4fce175b-662e-4ed1-b012-db4ae71032a6
select id::text, user_id::text, mode, status, input_url, input_filename, prompt, prompt_override,
       coalesce(result_urls, '[]'::jsonb), coalesce(thumbnail_url, ''), coalesce(backend_job_id, ''),
       progress, coalesce(error_message, ''), processing_time_seconds,
       created_at, started_at, completed_at, updated_at
from jobs
where status = 'processing'
  and started_at < $1::timestamptz
order by started_at asc;
`

const QRequeueJob = `--sql d6ef854f-5f2a-4280-a56d-2cc49e6d2168
update jobs
set status = 'queued',
    progress = 0,
    updated_at = now()
where id = $1::uuid
  and status = 'processing';
`

const QCountProcessingByUser = `--sql 76cddd2e-4b52-4028-b8f5-27f249072cff
select count(*)
from jobs
where user_id = $1::uuid
  and status = 'processing';
`

const QDeleteJob = `--sql b71064c1-2863-4fbc-b89c-68f9a4691b68
delete from jobs
where id = $1::uuid
  and user_id = $2::uuid;
`
