package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/launchpadtt/phabricator/internal/catalog"
)

// vcsLabel renders a VCS identifier for human output.
func vcsLabel(vcs catalog.VCS) string {
	switch vcs {
	case catalog.VCSGit:
		return "Git"
	case catalog.VCSMercurial:
		return "Mercurial"
	case catalog.VCSSubversion:
		return "Subversion"
	default:
		return cases.Title(language.Und).String(string(vcs))
	}
}

func vcsChoices() string {
	all := catalog.AllVCS()
	names := make([]string, 0, len(all))
	for _, vcs := range all {
		names = append(names, string(vcs))
	}
	return strings.Join(names, ", ")
}

func intervalLabel(seconds int) string {
	if seconds <= 0 {
		return "default"
	}
	return fmt.Sprintf("%ds", seconds)
}

func lastFetchLabel(ctx context.Context, store *catalog.Store, repositoryID int64) string {
	status, err := store.StatusFor(ctx, repositoryID, catalog.StatusFetch)
	if err != nil || status == nil {
		return "never"
	}
	when := time.Unix(status.Epoch, 0).UTC().Format("2006-01-02 15:04")
	if status.Code == catalog.CodeOkay {
		return "okay " + when
	}
	return "error " + when
}
