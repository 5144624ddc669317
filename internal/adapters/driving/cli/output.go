package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/docrag/internal/core/domain"
)

// Palette colours.
const (
	colourPrimary   = lipgloss.Color("#7C3AED")
	colourSecondary = lipgloss.Color("#06B6D4")
	colourMuted     = lipgloss.Color("#6C7086")
	colourSuccess   = lipgloss.Color("#A6E3A1")
	colourWarning   = lipgloss.Color("#F9E2AF")
	colourError     = lipgloss.Color("#F38BA8")
)

// printer writes human-readable output, styled only on a terminal. It is
// safe for concurrent use.
type printer struct {
	mu     sync.Mutex
	w      io.Writer
	styled bool

	title   lipgloss.Style
	accent  lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
}

func newPrinter(cmd *cobra.Command) *printer {
	w := cmd.OutOrStdout()
	styled := false
	if f, ok := w.(*os.File); ok {
		styled = term.IsTerminal(int(f.Fd()))
	}
	return &printer{
		w:       w,
		styled:  styled,
		title:   lipgloss.NewStyle().Bold(true).Foreground(colourPrimary),
		accent:  lipgloss.NewStyle().Foreground(colourSecondary),
		muted:   lipgloss.NewStyle().Foreground(colourMuted),
		success: lipgloss.NewStyle().Foreground(colourSuccess),
		warning: lipgloss.NewStyle().Foreground(colourWarning),
		failure: lipgloss.NewStyle().Foreground(colourError),
	}
}

func (p *printer) render(style lipgloss.Style, s string) string {
	if !p.styled {
		return s
	}
	return style.Render(s)
}

func (p *printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format, args...)
}

func (p *printer) answer(ans *domain.GeneratedAnswer) {
	p.printf("%s\n\n", strings.TrimSpace(ans.Answer))

	if ans.Metadata.IsFallback {
		p.printf("%s\n", p.render(p.warning, "fallback: "+string(ans.Metadata.FallbackReason)))
	}
	if len(ans.Sources) > 0 {
		p.printf("%s\n", p.render(p.title, "Sources"))
		for i, src := range ans.Sources {
			p.printf("  [%d] %s %s\n", i+1, src.Title, p.render(p.muted, location(src)))
		}
		p.printf("\n")
	}
	p.printf("%s\n", p.render(p.muted, fmt.Sprintf("query %s  model %s  %dms",
		ans.QueryID, ans.Metadata.ModelUsed, ans.Performance.TotalMS)))
}

func (p *printer) results(results []domain.SearchResult) {
	if len(results) == 0 {
		p.printf("No relevant passages found.\n")
		return
	}
	for i, r := range results {
		p.printf("%s %s %s\n", p.render(p.title, fmt.Sprintf("%d.", i+1)), r.Title,
			p.render(p.accent, fmt.Sprintf("(%.2f)", r.RelevanceScore)))
		p.printf("   %s\n", p.render(p.muted, location(r)))
		p.printf("   %s\n\n", snippet(r.Content, 240))
	}
}

func (p *printer) indexing(results []domain.IndexingResult) (failed int) {
	for _, r := range results {
		if r.Success {
			p.printf("%s %s %s\n", p.render(p.success, "indexed"), r.FilePath,
				p.render(p.muted, fmt.Sprintf("%s %d chunks %dms", r.DocumentID, r.IndexedChunks, r.ElapsedMS)))
			continue
		}
		failed++
		p.printf("%s %s: %s\n", p.render(p.failure, "failed"), r.FilePath, r.Error)
	}
	return failed
}

func (p *printer) documents(docs []domain.SourceDocument) {
	if len(docs) == 0 {
		p.printf("No documents indexed.\n")
		return
	}
	for _, d := range docs {
		p.printf("%s  %-8s %-12s %-14s %s\n", d.ID, d.Type, d.AccessLevel, dash(d.Department), d.Title)
	}
}

func (p *printer) document(d *domain.SourceDocument) {
	p.printf("%s\n", p.render(p.title, d.Title))
	p.printf("ID:          %s\n", d.ID)
	p.printf("Type:        %s\n", d.Type)
	p.printf("Source:      %s\n", d.Source)
	p.printf("Access:      %s\n", d.AccessLevel)
	p.printf("Department:  %s\n", dash(d.Department))
	if !d.CreatedAt.IsZero() {
		p.printf("Indexed:     %s\n", d.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	for _, k := range []string{"total_pages", "total_characters", "total_chunks"} {
		if v, ok := d.Metadata[k]; ok {
			p.printf("%-13s%v\n", strings.ReplaceAll(k, "_", " ")+":", v)
		}
	}
}

func (p *printer) history(page *domain.HistoryPage) {
	if len(page.Items) == 0 {
		p.printf("No history.\n")
		return
	}
	for _, e := range page.Items {
		p.printf("%s %s %s\n", p.render(p.muted, e.CreatedAt.Format("2006-01-02 15:04")),
			p.render(p.accent, e.QueryID), e.Query)
		if e.Answer != "" {
			p.printf("    %s\n", snippet(e.Answer, 160))
		}
	}
	p.printf("%s\n", p.render(p.muted, fmt.Sprintf("page %d of %d (%d total)", page.Page, page.TotalPages, page.Total)))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func location(r domain.SearchResult) string {
	if r.PageNumber != nil {
		return fmt.Sprintf("%s p.%d", r.Source, *r.PageNumber)
	}
	return r.Source
}

func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
