package shopify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"catalog-sync-service/internal/clients"
	"catalog-sync-service/internal/metrics"
)

var errNoStagedTarget = errors.New("stagedUploadsCreate returned no target")

// CreateStagedUpload asks the remote for a signed upload target for one file.
func (c *Client) CreateStagedUpload(ctx context.Context, input clients.StagedUploadInput) (*clients.StagedTarget, error) {
	variables := map[string]interface{}{
		"input": []map[string]interface{}{{
			"filename":   input.Filename,
			"mimeType":   input.MimeType,
			"fileSize":   strconv.FormatInt(input.FileSize, 10),
			"resource":   string(input.Resource),
			"httpMethod": "POST",
		}},
	}

	var data struct {
		StagedUploadsCreate struct {
			StagedTargets []struct {
				URL         string                    `json:"url"`
				ResourceURL string                    `json:"resourceUrl"`
				Parameters  []clients.StagedParameter `json:"parameters"`
			} `json:"stagedTargets"`
			UserErrors []clients.UserError `json:"userErrors"`
		} `json:"stagedUploadsCreate"`
	}
	if err := c.doGraphQL(ctx, "stagedUploadsCreate", stagedUploadsCreateMutation, variables, &data); err != nil {
		return nil, err
	}

	result := data.StagedUploadsCreate
	if len(result.UserErrors) > 0 {
		return nil, &clients.UserErrors{Action: "stagedUploadsCreate", Errors: result.UserErrors}
	}
	if len(result.StagedTargets) == 0 || result.StagedTargets[0].URL == "" {
		return nil, errNoStagedTarget
	}

	t := result.StagedTargets[0]
	return &clients.StagedTarget{URL: t.URL, ResourceURL: t.ResourceURL, Parameters: t.Parameters}, nil
}

// TransferFile streams the file to the staged target as multipart/form-data.
// Signed fields are replayed in order and the file part goes last without a Content-Type,
// since the signed policy does not cover one.
func (c *Client) TransferFile(ctx context.Context, target *clients.StagedTarget, file clients.UploadFile) error {
	var preamble bytes.Buffer
	mw := multipart.NewWriter(&preamble)
	for _, p := range target.Parameters {
		if err := mw.WriteField(p.Name, p.Value); err != nil {
			return err
		}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Filename))
	if _, err := mw.CreatePart(header); err != nil {
		return err
	}
	closing := fmt.Sprintf("\r\n--%s--\r\n", mw.Boundary())

	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", file.Filename, err)
	}
	defer src.Close()

	body := io.MultiReader(&preamble, src, bytes.NewBufferString(closing))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if file.Size > 0 {
		req.ContentLength = int64(preamble.Len()) + file.Size + int64(len(closing))
	}

	start := time.Now()
	resp, err := c.transferClient.Do(req)
	if err != nil {
		metrics.RecordRemoteRequest("staged", "transfer", 0, time.Since(start))
		return &clients.NetworkError{Op: "POST staged upload", Err: err}
	}
	defer resp.Body.Close()
	metrics.RecordRemoteRequest("staged", "transfer", resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		c.logger.WithFields(logrus.Fields{
			"file":   file.Filename,
			"status": resp.StatusCode,
		}).Warn("Staged transfer rejected")
		return &clients.TransferRejectedError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// CreateProductMedia registers staged resources as media of a product.
func (c *Client) CreateProductMedia(ctx context.Context, productID int64, media []clients.MediaInput) ([]clients.CreatedMedia, error) {
	inputs := make([]map[string]interface{}, len(media))
	for i, m := range media {
		in := map[string]interface{}{
			"originalSource":   m.OriginalSource,
			"mediaContentType": string(m.MediaContentType),
		}
		if m.Alt != "" {
			in["alt"] = m.Alt
		}
		inputs[i] = in
	}
	variables := map[string]interface{}{
		"productId": clients.GID("Product", productID),
		"media":     inputs,
	}

	var data struct {
		ProductCreateMedia struct {
			Media []struct {
				ID               string `json:"id"`
				Alt              string `json:"alt"`
				MediaContentType string `json:"mediaContentType"`
				Status           string `json:"status"`
			} `json:"media"`
			MediaUserErrors []clients.UserError `json:"mediaUserErrors"`
		} `json:"productCreateMedia"`
	}
	if err := c.doGraphQL(ctx, "productCreateMedia", productCreateMediaMutation, variables, &data); err != nil {
		return nil, err
	}
	if errs := data.ProductCreateMedia.MediaUserErrors; len(errs) > 0 {
		return nil, &clients.UserErrors{Action: "productCreateMedia", Errors: errs}
	}

	created := make([]clients.CreatedMedia, 0, len(data.ProductCreateMedia.Media))
	for _, m := range data.ProductCreateMedia.Media {
		created = append(created, clients.CreatedMedia{
			ID:               m.ID,
			Alt:              m.Alt,
			MediaContentType: clients.MediaKind(m.MediaContentType),
			Status:           m.Status,
		})
	}
	return created, nil
}

// DeleteProductMedia removes media from a product and returns the ids actually deleted.
func (c *Client) DeleteProductMedia(ctx context.Context, productID int64, mediaIDs []string) ([]string, error) {
	variables := map[string]interface{}{
		"productId": clients.GID("Product", productID),
		"mediaIds":  mediaIDs,
	}

	var data struct {
		ProductDeleteMedia struct {
			DeletedMediaIDs []string            `json:"deletedMediaIds"`
			MediaUserErrors []clients.UserError `json:"mediaUserErrors"`
		} `json:"productDeleteMedia"`
	}
	if err := c.doGraphQL(ctx, "productDeleteMedia", productDeleteMediaMutation, variables, &data); err != nil {
		return nil, err
	}
	if errs := data.ProductDeleteMedia.MediaUserErrors; len(errs) > 0 {
		return nil, &clients.UserErrors{Action: "productDeleteMedia", Errors: errs}
	}
	return data.ProductDeleteMedia.DeletedMediaIDs, nil
}

// ReorderProductMedia moves media items. The remote applies moves asynchronously.
func (c *Client) ReorderProductMedia(ctx context.Context, productID int64, moves []clients.MediaMove) error {
	in := make([]map[string]interface{}, len(moves))
	for i, m := range moves {
		in[i] = map[string]interface{}{
			"id":          m.ID,
			"newPosition": strconv.Itoa(m.NewPosition),
		}
	}
	variables := map[string]interface{}{
		"id":    clients.GID("Product", productID),
		"moves": in,
	}

	var data struct {
		ProductReorderMedia struct {
			MediaUserErrors []clients.UserError `json:"mediaUserErrors"`
		} `json:"productReorderMedia"`
	}
	if err := c.doGraphQL(ctx, "productReorderMedia", productReorderMediaMutation, variables, &data); err != nil {
		return err
	}
	if errs := data.ProductReorderMedia.MediaUserErrors; len(errs) > 0 {
		return &clients.UserErrors{Action: "productReorderMedia", Errors: errs}
	}
	return nil
}

// AppendVariantMedia binds existing product media to a variant.
func (c *Client) AppendVariantMedia(ctx context.Context, productID, variantID int64, mediaIDs []string) error {
	variables := map[string]interface{}{
		"productId": clients.GID("Product", productID),
		"variantMedia": []map[string]interface{}{{
			"variantId": clients.GID("ProductVariant", variantID),
			"mediaIds":  mediaIDs,
		}},
	}

	var data struct {
		ProductVariantAppendMedia struct {
			UserErrors []clients.UserError `json:"userErrors"`
		} `json:"productVariantAppendMedia"`
	}
	if err := c.doGraphQL(ctx, "productVariantAppendMedia", productVariantAppendMediaMutation, variables, &data); err != nil {
		return err
	}
	if errs := data.ProductVariantAppendMedia.UserErrors; len(errs) > 0 {
		return &clients.UserErrors{Action: "productVariantAppendMedia", Errors: errs}
	}
	return nil
}

// GetProductMedia returns every media item of a product, in display order.
func (c *Client) GetProductMedia(ctx context.Context, productID int64) ([]clients.Media, error) {
	var data struct {
		Product *struct {
			Media mediaConnection `json:"media"`
		} `json:"product"`
	}
	variables := map[string]interface{}{"id": clients.GID("Product", productID)}
	if err := c.doGraphQL(ctx, "productMedia", productMediaQuery, variables, &data); err != nil {
		return nil, err
	}
	if data.Product == nil {
		return nil, notFound("product", productID)
	}
	return c.decodeMedia(data.Product.Media.Nodes), nil
}

// ListProductsMedia returns a cursor page of products with their primary media.
func (c *Client) ListProductsMedia(ctx context.Context, first int, after string) (*clients.ProductMediaPage, error) {
	if first <= 0 || first > maxPageSize {
		first = maxPageSize
	}
	variables := map[string]interface{}{"first": first}
	if after != "" {
		variables["after"] = after
	}

	var data struct {
		Products struct {
			PageInfo struct {
				HasNextPage bool   `json:"hasNextPage"`
				EndCursor   string `json:"endCursor"`
			} `json:"pageInfo"`
			Nodes []productMediaNode `json:"nodes"`
		} `json:"products"`
	}
	if err := c.doGraphQL(ctx, "productsMedia", productsMediaQuery, variables, &data); err != nil {
		return nil, err
	}

	page := &clients.ProductMediaPage{
		Products:    c.summaries(data.Products.Nodes),
		HasNextPage: data.Products.PageInfo.HasNextPage,
		EndCursor:   data.Products.PageInfo.EndCursor,
	}
	return page, nil
}

// GetCollectionMedia returns a collection with each member product's primary media.
func (c *Client) GetCollectionMedia(ctx context.Context, collectionID int64) (*clients.CollectionMedia, error) {
	var data struct {
		Collection *struct {
			ID              string `json:"id"`
			Title           string `json:"title"`
			DescriptionHTML string `json:"descriptionHtml"`
			Image           *struct {
				URL     string `json:"url"`
				AltText string `json:"altText"`
				Width   int    `json:"width"`
				Height  int    `json:"height"`
			} `json:"image"`
			Products struct {
				Nodes []productMediaNode `json:"nodes"`
			} `json:"products"`
		} `json:"collection"`
	}
	variables := map[string]interface{}{"id": clients.GID("Collection", collectionID)}
	if err := c.doGraphQL(ctx, "collectionMedia", collectionMediaQuery, variables, &data); err != nil {
		return nil, err
	}
	if data.Collection == nil {
		return nil, notFound("collection", collectionID)
	}

	col := data.Collection
	result := &clients.CollectionMedia{
		ID:              collectionID,
		Title:           col.Title,
		DescriptionHTML: col.DescriptionHTML,
		Products:        c.summaries(col.Products.Nodes),
	}
	if col.Image != nil {
		result.Image = &clients.CollectionImage{
			URL:     col.Image.URL,
			AltText: col.Image.AltText,
			Width:   col.Image.Width,
			Height:  col.Image.Height,
		}
	}
	return result, nil
}

type productMediaNode struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	ProductType string          `json:"productType"`
	Media       mediaConnection `json:"media"`
}

type mediaConnection struct {
	Nodes []mediaNode `json:"nodes"`
}

type mediaNode struct {
	Typename         string `json:"__typename"`
	ID               string `json:"id"`
	Alt              string `json:"alt"`
	MediaContentType string `json:"mediaContentType"`
	Status           string `json:"status"`
	Preview          *struct {
		Image *struct {
			URL string `json:"url"`
		} `json:"image"`
	} `json:"preview"`
	Image *struct {
		URL    string `json:"url"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
	} `json:"image"`
	Sources []struct {
		URL      string `json:"url"`
		MimeType string `json:"mimeType"`
		Format   string `json:"format"`
		Width    int    `json:"width"`
		Height   int    `json:"height"`
	} `json:"sources"`
	EmbedURL string `json:"embedUrl"`
}

func (n mediaNode) previewURL() string {
	if n.Preview != nil && n.Preview.Image != nil {
		return n.Preview.Image.URL
	}
	return ""
}

func (c *Client) summaries(nodes []productMediaNode) []clients.ProductMediaSummary {
	out := make([]clients.ProductMediaSummary, 0, len(nodes))
	for _, n := range nodes {
		id, err := clients.ParseGID(n.ID)
		if err != nil {
			c.logger.WithError(err).Warn("Skipping product with unparseable id")
			continue
		}
		out = append(out, clients.ProductMediaSummary{
			ID:          id,
			Title:       n.Title,
			ProductType: n.ProductType,
			Media:       c.decodeMedia(n.Media.Nodes),
		})
	}
	return out
}

// decodeMedia maps GraphQL media nodes onto the closed media union. Unknown kinds are dropped.
func (c *Client) decodeMedia(nodes []mediaNode) []clients.Media {
	out := make([]clients.Media, 0, len(nodes))
	for _, n := range nodes {
		switch n.Typename {
		case "MediaImage":
			img := clients.MediaImage{ID: n.ID, Alt: n.Alt, Status: n.Status, URL: n.previewURL()}
			if n.Image != nil {
				img.URL = n.Image.URL
				img.Width = n.Image.Width
				img.Height = n.Image.Height
			}
			out = append(out, img)
		case "Video":
			v := clients.Video{ID: n.ID, Alt: n.Alt, Status: n.Status, PreviewURL: n.previewURL()}
			for _, s := range n.Sources {
				v.Sources = append(v.Sources, clients.VideoSource{
					URL: s.URL, MimeType: s.MimeType, Format: s.Format, Width: s.Width, Height: s.Height,
				})
			}
			out = append(out, v)
		case "ExternalVideo":
			out = append(out, clients.ExternalVideo{
				ID: n.ID, Alt: n.Alt, Status: n.Status, EmbedURL: n.EmbedURL, PreviewURL: n.previewURL(),
			})
		case "Model3d":
			m := clients.Model3d{ID: n.ID, Alt: n.Alt, Status: n.Status, PreviewURL: n.previewURL()}
			for _, s := range n.Sources {
				m.Sources = append(m.Sources, clients.ModelSource{URL: s.URL, MimeType: s.MimeType, Format: s.Format})
			}
			out = append(out, m)
		default:
			c.logger.WithField("typename", n.Typename).Debug("Skipping unknown media type")
		}
	}
	return out
}

func notFound(resource string, id int64) error {
	return &clients.RemoteHTTPError{
		Method:     http.MethodPost,
		Path:       "/graphql.json",
		StatusCode: http.StatusNotFound,
		Body:       fmt.Sprintf("%s %d not found", resource, id),
	}
}
