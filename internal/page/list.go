package page

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/dgnsrekt/yieldview/internal/apiclient"
	"github.com/dgnsrekt/yieldview/internal/apperr"
	"github.com/dgnsrekt/yieldview/internal/modal"
	"github.com/dgnsrekt/yieldview/internal/ui"
)

// MsgEnterAnalysisName is shown when the new analysis form is blank.
const MsgEnterAnalysisName = "Please enter an analysis name"

const msgCreateURLNotFound = "Create URL not found"

// ListBackend is what the analysis list page needs from the backend.
type ListBackend interface {
	ListPage(ctx context.Context) ([]byte, error)
	SetToken(token string)
	CreateAnalysis(ctx context.Context, createURL, name string) (apiclient.MutationResponse, error)
}

// ListView is what a client renders for the list page.
type ListView struct {
	AddAnalysisOpen bool           `json:"add_analysis_open"`
	SaveButton      ui.ButtonState `json:"save_button"`
	CreateURL       string         `json:"create_url,omitempty"`
}

// ListPage drives the analysis list page.
type ListPage struct {
	backend    ListBackend
	alerts     ui.Alerter
	addModal   *modal.Manager
	saveButton *ui.Button

	mu        sync.Mutex
	createURL string
}

// NewListPage wires the list page.
func NewListPage(backend ListBackend, alerts ui.Alerter, factory modal.Factory) *ListPage {
	if alerts == nil {
		alerts = ui.LogAlerter{}
	}
	return &ListPage{
		backend:    backend,
		alerts:     alerts,
		addModal:   modal.NewManager(AddAnalysisModal, factory),
		saveButton: ui.NewButton("Create Analysis"),
	}
}

// Init reads the CSRF token and create URL from the list page.
func (p *ListPage) Init(ctx context.Context) error {
	html, err := p.backend.ListPage(ctx)
	if err != nil {
		return err
	}
	parsed, err := ui.ParsePage(bytes.NewReader(html))
	if err != nil {
		return err
	}
	p.backend.SetToken(parsed.CSRFToken)
	p.mu.Lock()
	p.createURL = parsed.CreateURL
	p.mu.Unlock()
	return nil
}

// setCreateURL overrides the create URL read from the page.
func (p *ListPage) setCreateURL(u string) {
	p.mu.Lock()
	p.createURL = strings.TrimSpace(u)
	p.mu.Unlock()
}

// OpenAddAnalysis shows the new analysis dialog.
func (p *ListPage) OpenAddAnalysis() { p.addModal.Show() }

// CloseAddAnalysis hides the new analysis dialog.
func (p *ListPage) CloseAddAnalysis() { p.addModal.Hide() }

// HandleAddAnalysis creates an analysis and returns the URL to navigate to.
func (p *ListPage) HandleAddAnalysis(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		p.alerts.Alert(ctx, ui.LevelError, MsgEnterAnalysisName)
		return "", apperr.Validation(MsgEnterAnalysisName)
	}

	p.saveButton.SetLoading(true, "Creating...")
	defer p.saveButton.SetLoading(false, "")

	p.mu.Lock()
	createURL := p.createURL
	p.mu.Unlock()

	resp, err := p.create(ctx, createURL, name)
	if err != nil {
		slog.Error("Error creating analysis", "name", name, "error", err)
		p.alerts.Alert(ctx, ui.LevelError, "Error creating analysis: "+apperr.Message(err))
		return "", err
	}
	if !resp.Success {
		p.alerts.Alert(ctx, ui.LevelError, "Error: "+resp.Error)
		return "", apperr.New(apperr.CodeBackend, resp.Error, nil)
	}
	p.addModal.Hide()
	slog.Info("analysis created", "name", name, "redirect_url", resp.RedirectURL)
	return resp.RedirectURL, nil
}

func (p *ListPage) create(ctx context.Context, createURL, name string) (apiclient.MutationResponse, error) {
	if createURL == "" {
		return apiclient.MutationResponse{}, apperr.New(apperr.CodeValidation, msgCreateURLNotFound, nil)
	}
	return p.backend.CreateAnalysis(ctx, createURL, name)
}

// View returns the rendered page state.
func (p *ListPage) View() ListView {
	p.mu.Lock()
	createURL := p.createURL
	p.mu.Unlock()
	return ListView{
		AddAnalysisOpen: p.addModal.Open(),
		SaveButton:      p.saveButton.State(),
		CreateURL:       createURL,
	}
}
