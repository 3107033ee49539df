package core

// resolution.go runs the two-phase code lookup.
//
// Phase 1 happens synchronously when codes arrive: target rows get selected,
// the fields the lookup will overwrite are blanked (edit modes only) and the
// snapshot shows loadingData. Phase 2 applies the backend answer when the
// session loop delivers it through ApplyResolution.

import (
	"time"

	"github.com/JonMunkholm/gridhost/internal/resolve"
)

// Job is one batch of codes waiting to be looked up off the loop.
type Job struct {
	ID      uint64
	Codes   []string
	Targets map[int64]string // row id → normalized code
	Bulk    bool
	Tenant  string
	Mode    string
}

// Request converts the job for the resolve pipeline.
func (j Job) Request() resolve.Request {
	return resolve.Request{Codes: j.Codes, Tenant: j.Tenant, Mode: j.Mode, Bulk: j.Bulk}
}

// TakeJobs returns and clears the lookups queued since the last call.
func (r *Reconciler) TakeJobs() []Job {
	jobs := r.jobs
	r.jobs = nil
	return jobs
}

// queueLookup runs phase 1 for targets and queues the job.
func (r *Reconciler) queueLookup(targets map[int64]string) {
	if len(targets) == 0 {
		return
	}

	raw := make([]string, 0, len(targets))
	for _, row := range r.store.Rows() {
		if code, ok := targets[row.ID]; ok {
			raw = append(raw, code)
		}
	}
	codes := resolve.Codes(raw)

	r.nextJob++
	job := Job{
		ID:      r.nextJob,
		Codes:   codes,
		Targets: targets,
		Bulk:    resolve.IsBulk(len(codes), r.opts.BulkThreshold),
		Tenant:  r.opts.Tenant,
		Mode:    r.mode.Key,
	}

	sel := r.mode.PrimarySelection()
	blank := r.binding.Policy == resolve.PolicyOverwrite
	dependent := r.binding.DependentColumns()
	for id := range targets {
		row, ok := r.store.Get(id)
		if !ok {
			continue
		}
		if sel != "" {
			r.selections[sel][id] = true
		}
		if blank {
			for _, col := range dependent {
				row.Fields[col] = nil
			}
		}
	}

	r.inflight++
	if job.Bulk {
		r.bulkInflight++
		r.flushNow = true
	}
	r.jobs = append(r.jobs, job)

	r.logger.Debug("lookup queued",
		"job", job.ID,
		"codes", len(codes),
		"rows", len(targets),
		"bulk", job.Bulk,
	)
}

// OpenSuppressionWindow defers emissions until the window ends or the bulk
// lookups in flight complete. The loop calls it right after flushing the
// phase 1 snapshot of a bulk job.
func (r *Reconciler) OpenSuppressionWindow() {
	if r.bulkInflight == 0 {
		return
	}
	r.suppressUntil = r.opts.Now().Add(r.opts.SuppressionWindow)
}

// SuppressedUntil returns the end of the open suppression window, if any.
func (r *Reconciler) SuppressedUntil() (until time.Time, open bool) {
	if r.bulkInflight > 0 && r.opts.Now().Before(r.suppressUntil) {
		return r.suppressUntil, true
	}
	return time.Time{}, false
}

// ApplyResolution runs phase 2. Results land on the job's target rows by id
// whatever those rows hold now; deleted rows are skipped. On a backend error
// only the records that did resolve are applied, so a failed lookup never
// clears fields.
func (r *Reconciler) ApplyResolution(job Job, res resolve.Result, err error) {
	if r.inflight > 0 {
		r.inflight--
	}
	if job.Bulk && r.bulkInflight > 0 {
		r.bulkInflight--
		if r.bulkInflight == 0 {
			r.suppressUntil = time.Time{}
		}
	}

	if err != nil {
		r.logger.Warn("lookup failed",
			"job", job.ID,
			"codes", len(job.Codes),
			"resolved", len(res.Records),
			"error", err,
		)
	}

	patch := resolve.BuildPatch(r.binding, job.Codes, res)
	if patch.TenantAbbreviation != "" {
		r.tenantAbbrev = patch.TenantAbbreviation
	}

	applied, skipped := 0, 0
	for id, code := range job.Targets {
		row, ok := r.store.Get(id)
		if !ok {
			skipped++
			continue
		}
		rp, ok := patch.For(code)
		if !ok || (err != nil && !rp.Found) {
			continue
		}
		r.applyRowPatch(row, rp)
		applied++
	}

	r.logger.Debug("lookup applied",
		"job", job.ID,
		"resolved", len(res.Records),
		"rows", applied,
		"deleted_rows", skipped,
	)
	r.touch(false)
}

func (r *Reconciler) applyRowPatch(row *Row, rp resolve.RowPatch) {
	ident := r.mode.Identifier
	for col, v := range rp.Set {
		row.Fields[col] = v
		delete(row.Errors, col)
	}

	switch {
	case rp.IdentifierError != "":
		row.Errors[ident] = rp.IdentifierError
	case rp.ClearError:
		if r.binding.Policy == resolve.PolicyOverwrite || row.Errors[ident] == resolve.ErrCodeExists {
			delete(row.Errors, ident)
		}
	}

	if rp.ResetSnapshot {
		row.ResetBaseline()
	}
	if len(rp.Set) > 0 || rp.IdentifierError != "" {
		row.Source = ProvenanceLookup
	}
}
