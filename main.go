// =============================================================================
// Freight Billing Reconciler - Main Entry Point
// =============================================================================
//
// USAGE:
//   freightbill ingest <file>  - Ingest one carrier billing file
//   freightbill scan [folder]  - Ingest every new file of a folder
//   freightbill list clients   - Show what is ready to bill
//   freightbill bill ...       - Mark a client's cycle as billed
//   freightbill export         - Write the billing workbook
//   freightbill help           - Everything else
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : Ingestion, ledger, storage and reports
//   - pkg/       : Shared file utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/freight-billing-reconciler/cmd"
)

func main() {
	cmd.Execute()
}
