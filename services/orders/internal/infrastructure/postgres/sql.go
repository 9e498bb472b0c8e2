package postgres

const insertOrderSQL = `
INSERT INTO orders (customer_id, status, order_amount)
VALUES ($1, $2, $3)
RETURNING id, created_at
`

const insertOrderItemSQL = `
INSERT INTO order_items (order_id, product_id, quantity, price)
VALUES ($1, $2, $3, $4)
`

const getOrderSQL = `
SELECT id, customer_id, status, order_amount, created_at
FROM orders WHERE id = $1
`

const getOrderItemsSQL = `
SELECT product_id, quantity, price
FROM order_items WHERE order_id = $1
ORDER BY id
`

const updateOrderStatusSQL = `
UPDATE orders SET status = $2 WHERE id = $1
RETURNING id, customer_id, status, order_amount, created_at
`

const insertOutboxSQL = `
INSERT INTO outbox_messages (id, event_type, exchange, routing_key, payload, created_at)
VALUES ($1, $2, $3, $4, $5::jsonb, $6)
`

const selectUnpublishedSQL = `
SELECT id, event_type, exchange, routing_key, payload, retry_count
FROM outbox_messages
WHERE published = FALSE AND retry_count < $2
ORDER BY created_at ASC
LIMIT $1
`

const markPublishedSQL = `
UPDATE outbox_messages SET published = TRUE, published_at = $2 WHERE id = $1
`

const incrementOutboxRetrySQL = `
UPDATE outbox_messages SET retry_count = retry_count + 1 WHERE id = $1
`
