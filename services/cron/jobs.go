package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/bimuz/bimuz-api/model"
)

const (
	// Pending invoices older than this are expired by the hourly sweep.
	staleInvoiceHorizon = 7 * 24 * time.Hour

	// Cron logs are retained for this long.
	cronLogRetention = 90 * 24 * time.Hour

	jobTimeout = 5 * time.Minute
)

// ActivateStartedGroups flips is_active to true on every group whose
// starting date has been reached. The flip is one-way; a group never reverts
// to inactive automatically.
func (m *CronManager) ActivateStartedGroups() {
	jobName := "activate_started_groups"
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	updated, err := m.groups.ActivateStartedGroups(ctx)
	if err != nil {
		m.logJobError(jobName, err)
		return
	}
	m.logJobComplete(jobName, fmt.Sprintf("activated %d started group(s)", updated))
}

// ExpireStaleInvoices moves open invoices that have sat unpaid past the
// horizon into the EXPIRED state.
func (m *CronManager) ExpireStaleInvoices() {
	jobName := "expire_stale_invoices"
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	expired, err := m.invoices.ExpireStalePending(ctx, staleInvoiceHorizon)
	if err != nil {
		m.logJobError(jobName, err)
		return
	}
	m.logJobComplete(jobName, fmt.Sprintf("expired %d stale invoice(s)", expired))
}

// ReconcilePendingInvoices pulls the gateway status for recent PENDING
// invoices so payments confirmed while a callback was lost still land.
func (m *CronManager) ReconcilePendingInvoices() {
	jobName := "reconcile_pending_invoices"
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	var pending []model.Invoice
	err := m.db.WithContext(ctx).
		Where("status = ? AND gateway_invoice_id <> ''", model.InvoicePending).
		Where("COALESCE(pending_at, updated_at) >= ?", time.Now().Add(-staleInvoiceHorizon)).
		Limit(200).
		Find(&pending).Error
	if err != nil {
		m.logJobError(jobName, err)
		return
	}

	reconciled := 0
	for _, inv := range pending {
		updated, err := m.invoices.ReconcileStatus(ctx, inv.ID)
		if err != nil {
			// One unreachable invoice must not stall the sweep.
			continue
		}
		if updated.Status != inv.Status {
			reconciled++
		}
	}
	m.logJobComplete(jobName, fmt.Sprintf("checked %d pending invoice(s), reconciled %d", len(pending), reconciled))
}

// CleanupExpiredTokens removes blacklist rows whose tokens have expired on
// their own; they can no longer pass validation anyway.
func (m *CronManager) CleanupExpiredTokens() {
	jobName := "cleanup_expired_tokens"
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := m.blacklist.CleanupExpiredTokens(ctx); err != nil {
		m.logJobError(jobName, err)
		return
	}
	m.logJobComplete(jobName, "expired blacklist entries removed")
}

// CleanupOldCronLogs deletes cron execution logs past the retention window.
func (m *CronManager) CleanupOldCronLogs() {
	jobName := "cleanup_old_cron_logs"
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	cutoff := time.Now().Add(-cronLogRetention)
	res := m.db.WithContext(ctx).Unscoped().
		Where("started_at < ?", cutoff).
		Delete(&model.CronJobLog{})
	if res.Error != nil {
		m.logJobError(jobName, res.Error)
		return
	}
	m.logJobComplete(jobName, fmt.Sprintf("deleted %d old log row(s)", res.RowsAffected))
}
