// Package erp contains the ERP-facing side of the sync context: the financial
// documents, payments and customer records this service creates in the
// back-office system of record, and the port used to reach it.
//
// Documents carry the originating platform identifier in an external
// reference field. That field is the authoritative idempotency anchor: every
// workflow step re-checks it before writing, and "already exists" is success.
package erp
