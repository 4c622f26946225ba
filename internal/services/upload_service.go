package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"catalog-sync-service/internal/clients"
	"catalog-sync-service/internal/metrics"
)

// Media pipeline steps, in execution order.
const (
	StepValidate = "validate"
	StepStage    = "stage"
	StepTransfer = "transfer"
	StepAttach   = "attach"
	StepBind     = "bind"
	StepDone     = "done"
)

// FileOutcome reports what happened to one file. Step is the last step reached:
// StepDone on success, otherwise the step that failed.
type FileOutcome struct {
	File        string            `json:"file"`
	Kind        clients.MediaKind `json:"kind,omitempty"`
	Step        string            `json:"step"`
	OK          bool              `json:"ok"`
	ResourceURL string            `json:"resourceUrl,omitempty"`
	MediaID     string            `json:"mediaId,omitempty"`
	VariantID   int64             `json:"variantId,omitempty"`
	Error       string            `json:"error,omitempty"`

	Err error `json:"-"`
}

func (o *FileOutcome) fail(step string, err error) {
	o.Step = step
	o.OK = false
	o.Err = err
	o.Error = err.Error()
}

// StagedResource is a transferred file that has not been attached to a product yet.
type StagedResource struct {
	Filename    string            `json:"filename"`
	Kind        clients.MediaKind `json:"kind"`
	ResourceURL string            `json:"resourceUrl"`
}

// AttachRequest registers a staged resource as product media.
type AttachRequest struct {
	ResourceURL string            `json:"resource_url" validate:"required,url"`
	Kind        clients.MediaKind `json:"media_content_type" validate:"required,oneof=IMAGE VIDEO"`
	Alt         string            `json:"alt"`
	VariantID   int64             `json:"variant_id"`
}

// MediaPipeline runs the staged upload protocol: stage, transfer, attach.
type MediaPipeline struct {
	client clients.CatalogClient
	logger *logrus.Entry
}

// NewMediaPipeline creates a new media pipeline
func NewMediaPipeline(client clients.CatalogClient, logger *logrus.Logger) *MediaPipeline {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &MediaPipeline{
		client: client,
		logger: logger.WithField("component", "media-pipeline"),
	}
}

// Upload runs the full cycle for every file, one file at a time and in order. A failing
// file never stops the following ones. variantID binds each attached media to a variant when non-zero.
func (p *MediaPipeline) Upload(ctx context.Context, productID, variantID int64, files []MediaFile) []FileOutcome {
	outcomes := make([]FileOutcome, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			out := FileOutcome{File: f.Filename, VariantID: variantID}
			out.fail(StepStage, err)
			outcomes = append(outcomes, out)
			continue
		}
		outcomes = append(outcomes, p.UploadOne(ctx, productID, variantID, f))
	}
	return outcomes
}

// UploadOne runs stage, transfer and attach (and bind) for one file.
func (p *MediaPipeline) UploadOne(ctx context.Context, productID, variantID int64, file MediaFile) FileOutcome {
	out := FileOutcome{File: file.Filename, VariantID: variantID}
	log := p.logger.WithFields(logrus.Fields{"productId": productID, "file": file.Filename})

	staged, step, err := p.stageAndTransfer(ctx, file)
	if err != nil {
		out.fail(step, err)
		log.WithError(err).WithField("step", step).Warn("Media upload failed")
		return out
	}
	out.Kind = staged.Kind
	out.ResourceURL = staged.ResourceURL

	created, step, err := p.attach(ctx, productID, AttachRequest{
		ResourceURL: staged.ResourceURL,
		Kind:        staged.Kind,
		Alt:         file.Alt,
		VariantID:   variantID,
	}, file.Filename)
	if created != nil {
		out.MediaID = created.ID
	}
	if err != nil {
		out.fail(step, err)
		log.WithError(err).WithField("step", step).Warn("Media upload failed")
		return out
	}

	out.Step = StepDone
	out.OK = true
	log.WithField("mediaId", out.MediaID).Info("Media attached")
	return out
}

// StageAndTransfer uploads the bytes without attaching them. The returned resource URL can be
// passed to Attach once the product exists.
func (p *MediaPipeline) StageAndTransfer(ctx context.Context, file MediaFile) (*StagedResource, error) {
	staged, _, err := p.stageAndTransfer(ctx, file)
	return staged, err
}

// Attach registers a previously transferred resource as media of the product.
func (p *MediaPipeline) Attach(ctx context.Context, productID int64, req AttachRequest) (*clients.CreatedMedia, error) {
	if err := validate.Struct(req); err != nil {
		return nil, &ValidationError{Fields: structErrors(req)}
	}
	created, _, err := p.attach(ctx, productID, req, req.ResourceURL)
	return created, err
}

// Delete removes media from a product and returns the deleted ids.
func (p *MediaPipeline) Delete(ctx context.Context, productID int64, mediaIDs []string) ([]string, error) {
	if len(mediaIDs) == 0 {
		return nil, invalid("media_ids", "at least one media id is required")
	}
	ids, err := p.resolveMediaIDs(ctx, productID, "media_ids", mediaIDs)
	if err != nil {
		return nil, err
	}
	return p.client.DeleteProductMedia(ctx, productID, ids)
}

// SetFirst moves a media item to the first position, making it the primary media.
func (p *MediaPipeline) SetFirst(ctx context.Context, productID int64, mediaID string) error {
	if mediaID == "" {
		return invalid("media_id", "media_id is required")
	}
	ids, err := p.resolveMediaIDs(ctx, productID, "media_id", []string{mediaID})
	if err != nil {
		return err
	}
	return p.client.ReorderProductMedia(ctx, productID, []clients.MediaMove{{ID: ids[0], NewPosition: 0}})
}

func (p *MediaPipeline) stageAndTransfer(ctx context.Context, file MediaFile) (*StagedResource, string, error) {
	kind, mimeType, err := clients.MediaKindFor(file.ContentType, file.Filename)
	if err != nil {
		metrics.RecordMediaStep(StepValidate, err)
		return nil, StepValidate, invalid("file", err.Error())
	}
	if file.Open == nil || file.Size <= 0 {
		err := invalid("file", fmt.Sprintf("%s is empty", file.Filename))
		metrics.RecordMediaStep(StepValidate, err)
		return nil, StepValidate, err
	}

	target, err := p.client.CreateStagedUpload(ctx, clients.StagedUploadInput{
		Filename: file.Filename,
		MimeType: mimeType,
		FileSize: file.Size,
		Resource: kind,
	})
	metrics.RecordMediaStep(StepStage, err)
	if err != nil {
		return nil, StepStage, &StagingError{File: file.Filename, Err: err}
	}

	err = p.client.TransferFile(ctx, target, clients.UploadFile{
		Filename: file.Filename,
		Size:     file.Size,
		Open:     file.Open,
	})
	metrics.RecordMediaStep(StepTransfer, err)
	if err != nil {
		te := &TransferError{File: file.Filename, Err: err}
		var rejected *clients.TransferRejectedError
		if errors.As(err, &rejected) {
			te.StatusCode = rejected.StatusCode
			te.Body = rejected.Body
		}
		return nil, StepTransfer, te
	}

	return &StagedResource{Filename: file.Filename, Kind: kind, ResourceURL: target.ResourceURL}, "", nil
}

func (p *MediaPipeline) attach(ctx context.Context, productID int64, req AttachRequest, label string) (*clients.CreatedMedia, string, error) {
	created, err := p.client.CreateProductMedia(ctx, productID, []clients.MediaInput{{
		OriginalSource:   req.ResourceURL,
		MediaContentType: req.Kind,
		Alt:              req.Alt,
	}})
	if err == nil && len(created) == 0 {
		err = errors.New("no media returned")
	}
	metrics.RecordMediaStep(StepAttach, err)
	if err != nil {
		return nil, StepAttach, &AttachError{File: label, Err: err}
	}
	media := &created[0]

	if req.VariantID != 0 {
		err := p.client.AppendVariantMedia(ctx, productID, req.VariantID, []string{media.ID})
		metrics.RecordMediaStep(StepBind, err)
		if err != nil {
			return media, StepBind, &AttachError{File: label, Err: fmt.Errorf("bind to variant %d: %w", req.VariantID, err)}
		}
	}
	return media, "", nil
}

// resolveMediaIDs turns bare numeric ids into the global ids of the product's media.
// The numeric id alone does not say whether it names an image, a video or a model.
func (p *MediaPipeline) resolveMediaIDs(ctx context.Context, productID int64, field string, mediaIDs []string) ([]string, error) {
	ids := make([]string, len(mediaIDs))
	var byNumber map[int64]string
	for i, id := range mediaIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, invalid(field, "media ids must not be empty")
		}
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			ids[i] = id
			continue
		}
		if byNumber == nil {
			media, err := p.client.GetProductMedia(ctx, productID)
			if err != nil {
				return nil, err
			}
			byNumber = make(map[int64]string, len(media))
			for _, m := range media {
				if num, err := clients.ParseGID(m.MediaID()); err == nil {
					byNumber[num] = m.MediaID()
				}
			}
		}
		gid, ok := byNumber[n]
		if !ok {
			return nil, invalid(field, fmt.Sprintf("media %s does not belong to product %d", id, productID))
		}
		ids[i] = gid
	}
	return ids, nil
}
