package sqlinline

const QSelectSubscription = `--sql b9df6c1c-aa10-44f9-862e-43ade83dba19
select user_id::text, plan, status, current_period_end, cancel_at_period_end, updated_at
from subscriptions
where user_id = $1::uuid;
`

const QUpsertSubscription = `--sql e4465539-528b-4277-839e-959bb3767bbb
insert into subscriptions (user_id, plan, status, current_period_end, cancel_at_period_end, updated_at)
values ($1::uuid, $2::text, $3::text, $4::timestamptz, $5::boolean, now())
on conflict (user_id) do update set
    plan = excluded.plan,
    status = excluded.status,
    current_period_end = excluded.current_period_end,
    cancel_at_period_end = excluded.cancel_at_period_end,
    updated_at = now();
`
