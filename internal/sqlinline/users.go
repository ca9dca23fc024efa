package sqlinline

const QSelectUserByID = `--sql fc1a0742-67b2-4d36-b7fe-d11a225a8e5a
select id::text, email, full_name, created_at
from users
where id = $1::uuid;
`

const QSelectUserByEmail = `--sql 0c00db75-8968-46a1-ba96-f08995c93e7a
select id::text, email, full_name, created_at
from users
where lower(email) = lower($1::text);
`

const QInsertUser = `--sql 95a0103c-5ab2-4431-ad93-5a0b989be0b6
insert into users (email, full_name)
values (lower($1::text), $2::text)
on conflict (email) do update set
    full_name = case when excluded.full_name = '' then users.full_name else excluded.full_name end,
    updated_at = now()
returning id::text, email, full_name, created_at;
`
