package queue

import (
	"github.com/rs/zerolog"
)

// StartOutcomeLogger subscribes to TopicDeliveryOutcomes and logs each event.
// It gives in-process outcome events a consumer when no external one exists.
func StartOutcomeLogger(q Queue, log zerolog.Logger) error {
	return q.Subscribe(TopicDeliveryOutcomes, func(payload any) error {
		ev, err := Decode[OutcomeEvent](payload)
		if err != nil {
			log.Warn().Err(err).Msg("invalid outcome event")
			return nil // no retry
		}
		e := log.Info()
		if ev.Error != "" {
			e = log.Warn().Str("error", ev.Error)
		}
		e.Str("run_id", ev.RunID).Int("entry_id", ev.EntryID).Int("campaign_id", ev.CampaignID).
			Str("status", ev.Status).Str("external_message_id", ev.ExternalMessageID).Msg("delivery outcome")
		return nil
	})
}
