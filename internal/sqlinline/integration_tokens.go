package sqlinline

// Backend credentials live in integration_tokens keyed by provider name so the
// generation key can rotate without a redeploy.

const QSelectIntegrationToken = `--sql e2108948-ed50-47c7-9978-a93acd95f152
select t.token
from integration_tokens t
where t.provider = $1::text
  and btrim(t.token) <> '';
`

const QUpsertIntegrationToken = `--sql 2c57e85a-28d8-44d0-a3e6-1727e272bc08
insert into integration_tokens (provider, token, properties)
values ($1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb))
on conflict (provider) do update
set token      = excluded.token,
    properties = integration_tokens.properties || excluded.properties,
    updated_at = now();
`
