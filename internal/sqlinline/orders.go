package sqlinline

// Every statement that returns an order selects the columns in the order
// scanned by orders.scanOrder.

const QInsertOrder = `--sql 2e6bf5b7-c86a-4796-b63a-540f9b635700
insert into orders (
    id, user_id, email, plan, prompt, duration_seconds, voice_text,
    watermark_required, country, status, created_at, updated_at
)
values ($1::uuid, $2::text, $3::text, $4::text, $5::text, $6::int, $7::text,
        $8::boolean, $9::text, 'pending', $10::timestamptz, $10::timestamptz);
`

const QSelectOrderByID = `--sql 6d054bcd-6161-47fa-bdf6-b9c15906528f
select id::text, user_id, email, plan, prompt, duration_seconds, voice_text,
       watermark_required, country, status, coalesce(result_location, ''),
       coalesce(failure_reason, ''), created_at, updated_at, started_at, completed_at
from orders
where id = $1::uuid
limit 1;
`

const QCountOrdersSince = `--sql e8ee1411-312d-4ae5-a8d5-0657c650601a
select count(*)
from orders
where user_id = $1::text
  and created_at >= $2::timestamptz;
`

const QTransitionOrder = `--sql d1e35142-9123-467c-85a8-2086be4149c1
update orders
set status = $3::text,
    result_location = case $3::text when 'completed' then $4::text when 'failed' then null else result_location end,
    failure_reason = case $3::text when 'failed' then $5::text when 'completed' then null else failure_reason end,
    started_at = case $3::text when 'processing' then $6::timestamptz else started_at end,
    completed_at = case when $3::text in ('completed', 'failed') then $6::timestamptz else completed_at end,
    updated_at = $6::timestamptz
where id = $1::uuid
  and status = $2::text
returning id::text, user_id, email, plan, prompt, duration_seconds, voice_text,
          watermark_required, country, status, coalesce(result_location, ''),
          coalesce(failure_reason, ''), created_at, updated_at, started_at, completed_at;
`

const QForceCompleteOrder = `--sql 139cc0e5-402a-4e35-8de0-30cff65c155a
update orders
set status = 'completed',
    result_location = $2::text,
    failure_reason = null,
    completed_at = $3::timestamptz,
    updated_at = $3::timestamptz
where id = $1::uuid
returning id::text, user_id, email, plan, prompt, duration_seconds, voice_text,
          watermark_required, country, status, coalesce(result_location, ''),
          coalesce(failure_reason, ''), created_at, updated_at, started_at, completed_at;
`

const QSelectStalePendingOrderIDs = `--sql 24f21a2b-4d4f-49b3-a433-419fe6ed1aab
select id::text
from orders
where status = 'pending'
  and created_at < $1::timestamptz
order by created_at asc
limit $2::int;
`

const QOrderExists = `--sql b8f50f18-2ee4-4225-96cd-0b7e61adf0aa
select exists(select 1 from orders where id = $1::uuid);
`
