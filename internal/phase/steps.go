package phase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/stylr/migrate/internal/batch"
	"github.com/stylr/migrate/internal/checkpoint"
	"github.com/stylr/migrate/internal/errors"
	"github.com/stylr/migrate/internal/extract"
	"github.com/stylr/migrate/internal/identity"
	"github.com/stylr/migrate/internal/logger"
	"github.com/stylr/migrate/internal/media"
	"github.com/stylr/migrate/internal/score"
	"github.com/stylr/migrate/internal/store"
)

// ServiceKeyRecord is the persisted legacy-to-target key mapping for one
// service. Field names are part of the checkpoint contract.
type ServiceKeyRecord struct {
	OriginalID   string `json:"original_id"`
	NewServiceID string `json:"new_service_id"`
	StylistID    string `json:"stylist_id"`
}

// MessageKeyRecord is the persisted key mapping for one chat message.
type MessageKeyRecord struct {
	ProcessedMessageID string `json:"processed_message_id"`
	ChatID             string `json:"chat_id"`
	NewMessageID       string `json:"new_message_id"`
}

// groupedOptions builds the batch options for plain table inserts.
func (o *Orchestrator) groupedOptions() batch.GroupedOptions {
	return batch.GroupedOptions{
		Options: batch.Options{
			BatchSize:           o.settings.Batch.Size,
			DelayBetweenBatches: time.Duration(o.settings.Batch.DelayMs) * time.Millisecond,
		},
		FallbackToIndividual: o.settings.Batch.FallbackToSingles,
	}
}

func (o *Orchestrator) retryOptions() batch.RetryOptions {
	opts := batch.RetryOptions{
		MaxRetries: o.settings.Batch.MaxRetries,
		BaseDelay:  time.Duration(o.settings.Batch.BaseRetryDelayMs) * time.Millisecond,
		Logger:     o.log,
	}
	if o.metrics != nil {
		opts.OnRetry = o.metrics.RetriesTotal.Inc
	}
	return opts
}

// stepExtract loads the dump into memory. Cheap enough to never checkpoint.
func (o *Orchestrator) stepExtract(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dump, err := extract.Read(o.settings.Source.DumpPath, o.log)
	if err != nil {
		return err
	}
	o.state.dump = dump
	return nil
}

// stepConsolidate validates the source identities and runs deduplication.
// Records failing structural validation are excluded and reported, never
// silently dropped. A postcondition violation in the consolidated set is an
// unrecoverable step failure.
func (o *Orchestrator) stepConsolidate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !o.force && o.checkpoints.Exists(KeyConsolidatedUsers) {
		env, err := checkpoint.Load[identity.ConsolidatedIdentity](o.checkpoints, KeyConsolidatedUsers)
		if err != nil {
			return err
		}
		conflictEnv, err := checkpoint.Load[identity.DuplicateConflict](o.checkpoints, KeyConflicts)
		if err != nil && !errors.Is(err, checkpoint.ErrNotFound) {
			return err
		}
		o.state.consolidation = &identity.ConsolidationResult{
			Identities: env.Items,
			Conflicts:  conflictEnv.Items,
		}
		o.log.Info("consolidation checkpoint reused",
			logger.Int("identities", len(env.Items)))
		return nil
	}

	validator := identity.NewValidator()
	var issues []identity.ValidationIssue

	buyers := make([]identity.SourceBuyer, 0, len(o.state.dump.Buyers))
	for i := range o.state.dump.Buyers {
		b := &o.state.dump.Buyers[i]
		if recordIssues := validator.ValidateBuyer(b); identity.HasErrors(recordIssues) {
			issues = append(issues, recordIssues...)
			continue
		}
		buyers = append(buyers, *b)
	}
	stylists := make([]identity.SourceStylist, 0, len(o.state.dump.Stylists))
	for i := range o.state.dump.Stylists {
		s := &o.state.dump.Stylists[i]
		if recordIssues := validator.ValidateStylist(s); identity.HasErrors(recordIssues) {
			issues = append(issues, recordIssues...)
			continue
		}
		stylists = append(stylists, *s)
	}
	if len(issues) > 0 {
		o.log.Warn("source records excluded by validation",
			logger.Int("excluded_issues", len(issues)))
	}

	dedup := identity.NewDeduplicator(o.log)
	result, err := dedup.Consolidate(buyers, stylists)
	if err != nil {
		return err
	}
	if identity.HasErrors(result.Issues) {
		return errors.Newf("consolidated set violates uniqueness postconditions (%d issues)", len(result.Issues)).
			Component("phase").
			Category(errors.CategoryDedup).
			Build()
	}

	env := checkpoint.NewEnvelope(KeyConsolidatedUsers, result.Identities)
	env.Metadata.Counts["conflicts"] = len(result.Conflicts)
	if err := checkpoint.Save(o.checkpoints, KeyConsolidatedUsers, env); err != nil {
		return err
	}
	if err := checkpoint.Save(o.checkpoints, KeyConflicts,
		checkpoint.NewEnvelope(KeyConflicts, result.Conflicts)); err != nil {
		return err
	}

	o.state.consolidation = result
	return nil
}

// stepPersistUsers writes the consolidated identities to the target store
// and builds the legacy-to-target user key map for later steps. Zero
// successes with failures present is unrecoverable.
func (o *Orchestrator) stepPersistUsers(ctx context.Context) error {
	identities := o.state.consolidation.Identities

	o.state.keys.Users = make(map[string]string, len(identities))
	for i := range identities {
		id := &identities[i]
		o.state.keys.Users[id.OriginalID] = id.ID
	}
	// Both sides of a merged conflict must resolve to the winning identity.
	for i := range o.state.consolidation.Conflicts {
		c := &o.state.consolidation.Conflicts[i]
		winner := ""
		if c.Buyer != nil {
			if id, ok := o.state.keys.Users[c.Buyer.ID]; ok {
				winner = id
			}
		}
		if winner == "" && c.Stylist != nil {
			winner = o.state.keys.Users[c.Stylist.ID]
		}
		if winner != "" {
			if c.Buyer != nil {
				o.state.keys.Users[c.Buyer.ID] = winner
			}
			if c.Stylist != nil {
				o.state.keys.Users[c.Stylist.ID] = winner
			}
		}
	}

	if !o.force && o.checkpoints.Exists(KeyPersistedUsers) {
		env, err := checkpoint.Load[store.User](o.checkpoints, KeyPersistedUsers)
		if err != nil {
			return err
		}
		// Rebuild the write result from the checkpoint so a resumed run
		// reports the real persisted counts in its summary.
		failed := env.Metadata.Counts["failed"]
		o.state.userResult = batch.Result[store.User, store.User]{
			Successful:     env.Items,
			TotalProcessed: len(env.Items) + failed,
			SuccessCount:   len(env.Items),
			ErrorCount:     failed,
		}
		o.log.Info("user persistence checkpoint reused",
			logger.Int("persisted", len(env.Items)),
			logger.Int("failed", failed))
		return nil
	}

	users := store.UsersFromIdentities(identities)
	writer := store.NewBatchWriter[store.User](o.store.DB(), o.groupedOptions(), o.log)
	result := writer.Write(ctx, users)
	o.state.userResult = result

	if o.metrics != nil {
		o.metrics.RecordsTotal.WithLabelValues("users", "success").Add(float64(result.SuccessCount))
		o.metrics.RecordsTotal.WithLabelValues("users", "failure").Add(float64(result.ErrorCount))
	}

	if err := persistFatal("user", result.SuccessCount, result.ErrorCount); err != nil {
		return err
	}

	env := checkpoint.NewEnvelope(KeyPersistedUsers, result.Successful)
	env.Metadata.Counts["failed"] = result.ErrorCount
	return checkpoint.Save(o.checkpoints, KeyPersistedUsers, env)
}

// stepPersistRelated writes addresses, services, bookings and chat messages,
// remapping legacy foreign keys through the user key map, and builds the
// service and message key maps media migration depends on.
func (o *Orchestrator) stepPersistRelated(ctx context.Context) error {
	if !o.force && o.checkpoints.Exists(KeyPersistedServices) && o.checkpoints.Exists(KeyPersistedMessages) {
		return o.loadRelatedKeyMaps()
	}

	dump := o.state.dump
	userKeys := o.state.keys.Users
	opts := o.groupedOptions()

	// Services get fresh target ids; the legacy id is kept for traceability
	// and downstream key-matching.
	o.state.keys.Services = make(map[string]media.ServiceKey, len(dump.Services))
	services := make([]store.Service, 0, len(dump.Services))
	serviceKeys := make([]ServiceKeyRecord, 0, len(dump.Services))
	for i := range dump.Services {
		src := &dump.Services[i]
		stylistID, ok := userKeys[src.StylistID]
		if !ok {
			o.log.Warn("service skipped, stylist not migrated",
				logger.String("service_id", src.ID),
				logger.String("stylist_id", src.StylistID))
			continue
		}
		newID := uuid.NewString()
		services = append(services, store.Service{
			ID:              newID,
			StylistID:       stylistID,
			Title:           src.Title,
			Description:     src.Description,
			PriceCents:      src.PriceCents,
			DurationMinutes: src.DurationMinutes,
			OriginalID:      src.ID,
			CreatedAt:       src.CreatedAt,
			UpdatedAt:       src.UpdatedAt,
		})
		o.state.keys.Services[src.ID] = media.ServiceKey{ServiceID: newID, StylistID: stylistID}
		serviceKeys = append(serviceKeys, ServiceKeyRecord{
			OriginalID:   src.ID,
			NewServiceID: newID,
			StylistID:    stylistID,
		})
	}
	serviceResult := store.NewBatchWriter[store.Service](o.store.DB(), opts, o.log).Write(ctx, services)
	// Failed service inserts must not leave dangling keys: bookings and media
	// records would otherwise reference rows that do not exist.
	serviceKeys = pruneFailedServiceKeys(&serviceResult, o.state.keys.Services, serviceKeys)
	if err := persistFatal("service", serviceResult.SuccessCount, serviceResult.ErrorCount); err != nil {
		return err
	}

	addresses := make([]store.Address, 0, len(dump.Addresses))
	for i := range dump.Addresses {
		src := &dump.Addresses[i]
		userID, ok := userKeys[src.UserID]
		if !ok {
			continue
		}
		addresses = append(addresses, store.Address{
			UserID:     userID,
			Street:     src.Street,
			City:       src.City,
			PostalCode: src.PostalCode,
			Country:    src.Country,
			OriginalID: src.ID,
		})
	}
	addressResult := store.NewBatchWriter[store.Address](o.store.DB(), opts, o.log).Write(ctx, addresses)
	if err := persistFatal("address", addressResult.SuccessCount, addressResult.ErrorCount); err != nil {
		return err
	}

	bookings := make([]store.Booking, 0, len(dump.Bookings))
	for i := range dump.Bookings {
		src := &dump.Bookings[i]
		buyerID, buyerOK := userKeys[src.BuyerID]
		serviceKey, serviceOK := o.state.keys.Services[src.ServiceID]
		if !buyerOK || !serviceOK {
			continue
		}
		bookings = append(bookings, store.Booking{
			ID:         uuid.NewString(),
			ServiceID:  serviceKey.ServiceID,
			BuyerID:    buyerID,
			StartsAt:   src.StartsAt,
			Status:     src.Status,
			OriginalID: src.ID,
			CreatedAt:  src.CreatedAt,
		})
	}
	bookingResult := store.NewBatchWriter[store.Booking](o.store.DB(), opts, o.log).Write(ctx, bookings)
	if err := persistFatal("booking", bookingResult.SuccessCount, bookingResult.ErrorCount); err != nil {
		return err
	}

	o.state.keys.Messages = make(map[string]media.MessageKey, len(dump.ChatMessages))
	messages := make([]store.ChatMessage, 0, len(dump.ChatMessages))
	messageKeys := make([]MessageKeyRecord, 0, len(dump.ChatMessages))
	for i := range dump.ChatMessages {
		src := &dump.ChatMessages[i]
		newID := uuid.NewString()
		messages = append(messages, store.ChatMessage{
			ID:                 newID,
			ChatID:             src.ChatID,
			SenderID:           userKeys[src.SenderID],
			Body:               src.Body,
			SentAt:             src.SentAt,
			ProcessedMessageID: src.ID,
		})
		o.state.keys.Messages[src.ID] = media.MessageKey{ChatID: src.ChatID, MessageID: newID}
		messageKeys = append(messageKeys, MessageKeyRecord{
			ProcessedMessageID: src.ID,
			ChatID:             src.ChatID,
			NewMessageID:       newID,
		})
	}
	messageResult := store.NewBatchWriter[store.ChatMessage](o.store.DB(), opts, o.log).Write(ctx, messages)
	messageKeys = pruneFailedMessageKeys(&messageResult, o.state.keys.Messages, messageKeys)
	if err := persistFatal("message", messageResult.SuccessCount, messageResult.ErrorCount); err != nil {
		return err
	}

	if o.metrics != nil {
		for entity, result := range map[string]struct{ ok, failed int }{
			"services":  {serviceResult.SuccessCount, serviceResult.ErrorCount},
			"addresses": {addressResult.SuccessCount, addressResult.ErrorCount},
			"bookings":  {bookingResult.SuccessCount, bookingResult.ErrorCount},
			"messages":  {messageResult.SuccessCount, messageResult.ErrorCount},
		} {
			o.metrics.RecordsTotal.WithLabelValues(entity, "success").Add(float64(result.ok))
			o.metrics.RecordsTotal.WithLabelValues(entity, "failure").Add(float64(result.failed))
		}
	}

	if err := checkpoint.Save(o.checkpoints, KeyPersistedServices,
		checkpoint.NewEnvelope(KeyPersistedServices, serviceKeys)); err != nil {
		return err
	}
	return checkpoint.Save(o.checkpoints, KeyPersistedMessages,
		checkpoint.NewEnvelope(KeyPersistedMessages, messageKeys))
}

// persistFatal converts an all-failures write into an unrecoverable step
// error, mirroring the user persistence policy.
func persistFatal(entity string, successes, failures int) error {
	if successes == 0 && failures > 0 {
		return errors.Newf("%s persistence created zero records with %d failures", entity, failures).
			Component("phase").
			Category(errors.CategoryDatabase).
			Build()
	}
	return nil
}

// pruneFailedServiceKeys removes the key mappings of services whose insert
// failed, both from the in-memory map and from the checkpoint records.
func pruneFailedServiceKeys(result *batch.Result[store.Service, store.Service],
	keys map[string]media.ServiceKey, records []ServiceKeyRecord) []ServiceKeyRecord {
	if len(result.Failed) == 0 {
		return records
	}
	failed := make(map[string]bool, len(result.Failed))
	for i := range result.Failed {
		failed[result.Failed[i].Item.OriginalID] = true
	}
	kept := records[:0]
	for _, rec := range records {
		if failed[rec.OriginalID] {
			delete(keys, rec.OriginalID)
			continue
		}
		kept = append(kept, rec)
	}
	return kept
}

// pruneFailedMessageKeys is the chat-message counterpart of
// pruneFailedServiceKeys.
func pruneFailedMessageKeys(result *batch.Result[store.ChatMessage, store.ChatMessage],
	keys map[string]media.MessageKey, records []MessageKeyRecord) []MessageKeyRecord {
	if len(result.Failed) == 0 {
		return records
	}
	failed := make(map[string]bool, len(result.Failed))
	for i := range result.Failed {
		failed[result.Failed[i].Item.ProcessedMessageID] = true
	}
	kept := records[:0]
	for _, rec := range records {
		if failed[rec.ProcessedMessageID] {
			delete(keys, rec.ProcessedMessageID)
			continue
		}
		kept = append(kept, rec)
	}
	return kept
}

// loadRelatedKeyMaps rebuilds the service and message key maps from their
// checkpoints when the persist step is skipped on resume.
func (o *Orchestrator) loadRelatedKeyMaps() error {
	serviceEnv, err := checkpoint.Load[ServiceKeyRecord](o.checkpoints, KeyPersistedServices)
	if err != nil {
		return err
	}
	messageEnv, err := checkpoint.Load[MessageKeyRecord](o.checkpoints, KeyPersistedMessages)
	if err != nil {
		return err
	}

	o.state.keys.Services = make(map[string]media.ServiceKey, len(serviceEnv.Items))
	for i := range serviceEnv.Items {
		rec := &serviceEnv.Items[i]
		o.state.keys.Services[rec.OriginalID] = media.ServiceKey{
			ServiceID: rec.NewServiceID,
			StylistID: rec.StylistID,
		}
	}
	o.state.keys.Messages = make(map[string]media.MessageKey, len(messageEnv.Items))
	for i := range messageEnv.Items {
		rec := &messageEnv.Items[i]
		o.state.keys.Messages[rec.ProcessedMessageID] = media.MessageKey{
			ChatID:    rec.ChatID,
			MessageID: rec.NewMessageID,
		}
	}

	o.log.Info("related-entity checkpoints reused",
		logger.Int("services", len(o.state.keys.Services)),
		logger.Int("messages", len(o.state.keys.Messages)))
	return nil
}

// stepMedia derives assets from the dump, runs the media pipeline and
// checkpoints the per-asset upload results.
func (o *Orchestrator) stepMedia(ctx context.Context) error {
	if !o.force && o.checkpoints.Exists(KeyMediaReport) {
		env, err := checkpoint.Load[media.UploadResult](o.checkpoints, KeyMediaReport)
		if err != nil {
			return err
		}
		report := &media.Report{Uploads: env.Items, Attempted: len(env.Items)}
		for i := range env.Items {
			if env.Items[i].Success {
				report.UploadedCount++
			}
		}
		records, err := o.store.CountMediaRecords(ctx, "")
		if err != nil {
			return err
		}
		report.RecordsCreated = int(records)
		o.state.mediaReport = report
		o.log.Info("media checkpoint reused", logger.Int("uploads", report.UploadedCount))
		return nil
	}

	assets := media.DeriveAssets(o.state.dump.MediaFiles, &o.state.keys)

	compressor := media.NewCompressor(o.settings.Media.Compression, o.settings.Media.TempDir, o.log)
	writer := store.NewBatchWriter[store.MediaRecord](o.store.DB(), o.groupedOptions(), o.log)
	migrator := media.NewMigrator(o.objects, compressor, writer,
		o.settings.Media.FanOut, o.retryOptions(), o.log)

	report := migrator.MigrateAll(ctx, assets)
	o.state.mediaReport = report

	if o.metrics != nil {
		o.metrics.UploadsTotal.WithLabelValues("success").Add(float64(report.UploadedCount))
		o.metrics.UploadsTotal.WithLabelValues("failure").Add(float64(report.Attempted - report.UploadedCount))
		o.metrics.RecordsTotal.WithLabelValues("media", "success").Add(float64(report.RecordsCreated))
		o.metrics.RecordsTotal.WithLabelValues("media", "failure").Add(float64(report.RecordFailures))
	}

	env := checkpoint.NewEnvelope(KeyMediaReport, report.Uploads)
	env.Metadata.Counts["uploaded"] = report.UploadedCount
	env.Metadata.Counts["skipped"] = len(report.Skipped)
	env.Metadata.Counts["records_created"] = report.RecordsCreated
	return checkpoint.Save(o.checkpoints, KeyMediaReport, env)
}

// stepScore aggregates every upstream output into the readiness report.
func (o *Orchestrator) stepScore(ctx context.Context) error {
	report := o.state.mediaReport

	sampler := score.NewAccessibilitySampler(o.objects, o.settings.Score.SampleSize, o.log)
	paths, err := o.store.MediaStoragePaths(ctx, sampler.SampleSize())
	if err != nil {
		return err
	}
	sampled, reachable := sampler.Sample(ctx, paths)

	previewCounts, err := o.store.ServicePreviewCounts(ctx)
	if err != nil {
		return err
	}
	withOnePreview := 0
	for _, n := range previewCounts {
		if n == 1 {
			withOnePreview++
		}
	}

	var ratioSum float64
	var compressed int
	for i := range report.Uploads {
		if report.Uploads[i].Compression.ToolSucceeded {
			ratioSum += report.Uploads[i].Compression.Ratio
			compressed++
		}
	}
	avgRatio := 0.0
	if compressed > 0 {
		avgRatio = ratioSum / float64(compressed)
	}

	inputs := &score.Inputs{
		// Score measures the steps before itself.
		PipelineStepsCompleted:  o.state.stepsCompleted,
		PipelineStepsTotal:      o.state.stepsTotal - 1,
		UploadsAttempted:        report.Attempted,
		UploadsSucceeded:        report.UploadedCount,
		RecordsAttempted:        report.UploadedCount,
		RecordsCreated:          report.RecordsCreated,
		AccessibilitySampled:    sampled,
		AccessibilityReachable:  reachable,
		ServicesTotal:           len(o.state.keys.Services),
		ServicesWithOnePreview:  withOnePreview,
		AverageCompressionRatio: avgRatio,
	}

	result := score.NewScorer(o.log).Score(inputs)
	o.state.scoreResult = result

	if o.metrics != nil {
		o.metrics.ReadinessScore.Set(result.OverallScore)
	}

	env := checkpoint.NewEnvelope(KeyScoreReport, result.Checks)
	env.Metadata.Counts["score"] = int(result.OverallScore)
	return checkpoint.Save(o.checkpoints, KeyScoreReport, env)
}
