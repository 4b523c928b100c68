// Package reconcile contains the application services that turn storefront
// order and return snapshots into ERP financial documents: customer
// resolution, document building, duplicate guarding and the workflow
// orchestrator. Services here depend only on domain ports; adapters live
// under infrastructure.
package reconcile
