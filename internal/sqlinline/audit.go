package sqlinline

const QInsertAuditLog = `--sql e2932a0b-a723-44c3-b6fe-9d9a6c9b9ab0
insert into audit_logs (user_id, action, resource_type, resource_id, ip_address, country, user_agent, metadata, created_at)
values (nullif($1::text, '')::uuid, $2::text, $3::text, $4::text, $5::text, $6::text, $7::text, coalesce($8::jsonb, '{}'::jsonb), $9::timestamptz);
`
