package export

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/Sternrassler/cc-export/pkg/artifact"
	"github.com/Sternrassler/cc-export/pkg/client"
	"github.com/Sternrassler/cc-export/pkg/pagination"
)

// Category directories under the download dir.
const (
	CategoryCampaignData = "CampaignData"
	CategoryCampaigns    = "Campaigns"
	CategoryLibrary      = "Library"
)

const (
	campaignsPath    = "emailmarketing/campaigns"
	libraryFilesPath = "library/files"
)

// Variant is one kind of export: where its listing lives and how an item
// of that listing becomes an artifact.
type Variant interface {
	// Name identifies the variant in logs, metrics and the status store.
	Name() string

	// Category is the directory the variant writes into.
	Category() string

	// Noun names the exported items in the run summary.
	Noun() string

	FirstPageURL() string
	NextPageURL(token string) string

	// Process fetches and persists one item. It never returns an error;
	// every failure is a failed Outcome.
	Process(ctx context.Context, item pagination.ItemSummary) artifact.Outcome
}

// Fetcher is the part of *client.Client the engine and variants use.
type Fetcher interface {
	GetJSON(ctx context.Context, rawURL string, out any) error
	GetStream(ctx context.Context, rawURL string) (*client.Stream, error)
}

// CampaignDetail holds the fields of a campaign record the exports need.
// The full record is kept in Raw.
type CampaignDetail struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	CreatedDate  string `json:"created_date"`
	LastRunDate  string `json:"last_run_date"`
	PermalinkURL string `json:"permalink_url"`

	Raw json.RawMessage `json:"-"`
}

// campaignPath is the escaped detail path of one campaign.
func campaignPath(id string) string {
	return campaignsPath + "/" + url.PathEscape(id)
}

// fetchCampaign loads the full record of a campaign.
func fetchCampaign(ctx context.Context, api Fetcher, ep *Endpoints, id string) (*CampaignDetail, error) {
	var raw json.RawMessage
	if err := api.GetJSON(ctx, ep.URL(campaignPath(id), nil), &raw); err != nil {
		return nil, err
	}

	detail := &CampaignDetail{Raw: raw}
	if err := json.Unmarshal(raw, detail); err != nil {
		return nil, fmt.Errorf("decode campaign %s: %w", id, err)
	}
	return detail, nil
}

// campaignListing is shared by both campaign variants.
type campaignListing struct {
	api       Fetcher
	endpoints *Endpoints
	writer    *artifact.Writer
}

func (c campaignListing) Noun() string {
	return "campaigns"
}

func (c campaignListing) FirstPageURL() string {
	return c.endpoints.URL(campaignsPath, url.Values{"status": {"ALL"}})
}

func (c campaignListing) NextPageURL(token string) string {
	return c.endpoints.Next(campaignsPath, token)
}

// CampaignData exports every campaign record as indented JSON.
type CampaignData struct {
	campaignListing
}

// NewCampaignData creates the JSON campaign export.
func NewCampaignData(api Fetcher, endpoints *Endpoints, writer *artifact.Writer) *CampaignData {
	return &CampaignData{campaignListing{api: api, endpoints: endpoints, writer: writer}}
}

func (v *CampaignData) Name() string     { return "campaign-data" }
func (v *CampaignData) Category() string { return CategoryCampaignData }

// Process writes <created_date>_<slug>.json.
func (v *CampaignData) Process(ctx context.Context, item pagination.ItemSummary) artifact.Outcome {
	detail, err := fetchCampaign(ctx, v.api, v.endpoints, item.ID)
	if err != nil {
		return artifact.Failed(artifact.ReasonFetchFailed, err)
	}

	date, err := artifact.ArtifactDate("", detail.CreatedDate)
	if err != nil {
		return artifact.Failed(artifact.ReasonInvalidRecord, fmt.Errorf("campaign %s: %w", item.ID, err))
	}

	entry := artifact.Entry{ID: item.ID, Name: item.Name, Date: date}
	return v.writer.WriteJSON(ctx, entry, detail.Raw)
}

// CampaignPDF renders every campaign's permalink page to PDF.
type CampaignPDF struct {
	campaignListing
}

// NewCampaignPDF creates the PDF campaign export. writer must carry a
// renderer.
func NewCampaignPDF(api Fetcher, endpoints *Endpoints, writer *artifact.Writer) *CampaignPDF {
	return &CampaignPDF{campaignListing{api: api, endpoints: endpoints, writer: writer}}
}

func (v *CampaignPDF) Name() string     { return "campaigns" }
func (v *CampaignPDF) Category() string { return CategoryCampaigns }

// Process writes <last_run_date or created_date>_<slug>.pdf.
func (v *CampaignPDF) Process(ctx context.Context, item pagination.ItemSummary) artifact.Outcome {
	detail, err := fetchCampaign(ctx, v.api, v.endpoints, item.ID)
	if err != nil {
		return artifact.Failed(artifact.ReasonFetchFailed, err)
	}

	date, err := artifact.ArtifactDate(detail.LastRunDate, detail.CreatedDate)
	if err != nil {
		return artifact.Failed(artifact.ReasonInvalidRecord, fmt.Errorf("campaign %s: %w", item.ID, err))
	}

	entry := artifact.Entry{ID: item.ID, Name: item.Name, Date: date}
	return v.writer.WritePDF(ctx, entry, detail.PermalinkURL)
}

// Library downloads every file of the document library. Listing entries
// already carry the file URL, so no detail request is made.
type Library struct {
	api       Fetcher
	endpoints *Endpoints
	writer    *artifact.Writer
}

// NewLibrary creates the library file export.
func NewLibrary(api Fetcher, endpoints *Endpoints, writer *artifact.Writer) *Library {
	return &Library{api: api, endpoints: endpoints, writer: writer}
}

func (v *Library) Name() string     { return "library" }
func (v *Library) Category() string { return CategoryLibrary }
func (v *Library) Noun() string     { return "files" }

func (v *Library) FirstPageURL() string {
	return v.endpoints.URL(libraryFilesPath, url.Values{
		"limit":  {"1000"},
		"type":   {"ALL"},
		"source": {"ALL"},
	})
}

func (v *Library) NextPageURL(token string) string {
	return v.endpoints.Next(libraryFilesPath, token)
}

// Process streams the file into [<folder>/]<name>.
func (v *Library) Process(ctx context.Context, item pagination.ItemSummary) artifact.Outcome {
	if item.URL == "" {
		return artifact.Failed(artifact.ReasonNoContentSource,
			fmt.Errorf("file %q: %w", item.Name, artifact.ErrNoContentSource))
	}

	stream, err := v.api.GetStream(ctx, item.URL)
	if err != nil {
		return artifact.Failed(artifact.ReasonFetchFailed, err)
	}
	defer stream.Close()

	entry := artifact.Entry{ID: item.ID, Name: item.Name, Folder: item.Folder}
	return v.writer.WriteStream(ctx, entry, stream)
}
