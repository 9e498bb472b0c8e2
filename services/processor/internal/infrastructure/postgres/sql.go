package postgres

const getForUpdateSQL = `
SELECT id, order_id, status, error_message, processed_at, created_at, updated_at
FROM order_processing WHERE order_id = $1
FOR UPDATE
`

const insertProcessingSQL = `
INSERT INTO order_processing (order_id, status)
VALUES ($1, $2)
RETURNING id, order_id, status, error_message, processed_at, created_at, updated_at
`

const markProcessingSQL = `
UPDATE order_processing SET status = $2, updated_at = now() WHERE order_id = $1
`

const markTerminalSQL = `
UPDATE order_processing
SET status = $2, error_message = $3, processed_at = $4, updated_at = now()
WHERE order_id = $1
`

const resetStuckSQL = `
UPDATE order_processing
SET status = 'PENDING', updated_at = now()
WHERE status = 'PROCESSING' AND updated_at < $1
RETURNING order_id
`
