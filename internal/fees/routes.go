package fees

import "github.com/go-chi/chi/v5"

// MountRoutes attaches the fee ledger API.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/receipts", h.createReceipt)
	r.Post("/receipts/{receiptNo}/delete", h.deleteReceipt)
	r.Get("/students/{studentID}/summary", h.studentSummary)
	r.Get("/families/{groupID}/summary", h.familySummary)
	r.Get("/cashbook", h.cashbook)
	r.Get("/deleted", h.deletedRecords)
}
