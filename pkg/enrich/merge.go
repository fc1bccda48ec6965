package enrich

import (
	"thoughtpost/pkg/models"
)

// Merge folds one agent response into a post. It is a pure transform on
// the given copy: per-platform upsert, never wholesale replacement, so
// duplicated, reordered and partial deliveries all converge to the same
// final state.
//
// Rules:
//   - a platform entry is created on first sight, in PENDING publish state;
//   - a non-empty body overwrites the text fields;
//   - images are appended only when their id is unseen, and each tag slot
//     keeps exactly one selected image (the first to arrive);
//   - the post status is recomputed from the response status.
func Merge(p *models.ThoughtPost, msg *Response) {
	for i := range msg.EnrichedContents {
		mergeContent(p, &msg.EnrichedContents[i])
	}

	switch msg.Status {
	case ResponseCompleted:
		p.Status = models.StatusEnriched
		p.ErrorMessage = ""
	case ResponseInProgress:
		p.Status = models.StatusProcessing
	case ResponsePartiallyCompleted:
		p.Status = models.StatusPartiallyCompleted
		p.ErrorMessage = msg.ErrorMessage
	default:
		p.Status = models.StatusFailed
		p.ErrorMessage = msg.ErrorMessage
	}
}

func mergeContent(p *models.ThoughtPost, cm *ContentMessage) {
	ec := p.Content(cm.Platform)
	if ec == nil {
		p.EnrichedContents = append(p.EnrichedContents, models.EnrichedContent{
			Platform: cm.Platform,
			Status:   models.StatusPending,
		})
		ec = &p.EnrichedContents[len(p.EnrichedContents)-1]
	}

	if cm.Body != "" {
		ec.Title = cm.Title
		ec.Body = cm.Body
		ec.Hashtags = append([]string(nil), cm.Hashtags...)
		ec.CallToAction = cm.CallToAction
		ec.CharacterCount = cm.CharacterCount
		if ec.CharacterCount == 0 {
			ec.CharacterCount = len(cm.Body)
		}
	}
	if cm.Progress > ec.Progress {
		ec.Progress = cm.Progress
	}

	for _, im := range cm.Images {
		if im.ID == "" || hasImage(ec, im.ID) {
			continue
		}
		ec.Images = append(ec.Images, models.GeneratedImage{
			ID:        im.ID,
			Data:      im.Data,
			Format:    im.Format,
			Prompt:    im.Prompt,
			Width:     im.Width,
			Height:    im.Height,
			Tag:       im.Tag,
			Selected:  !tagSelected(ec, im.Tag),
			CreatedAt: im.CreatedAt,
		})
	}
}

func hasImage(ec *models.EnrichedContent, id string) bool {
	for i := range ec.Images {
		if ec.Images[i].ID == id {
			return true
		}
	}
	return false
}

func tagSelected(ec *models.EnrichedContent, tag string) bool {
	for i := range ec.Images {
		if ec.Images[i].Tag == tag && ec.Images[i].Selected {
			return true
		}
	}
	return false
}
