package checks

import (
	"context"
	"slices"
	"strings"

	"github.com/fulmenhq/repopolicy/internal/precommit"
)

var nbstripoutExtraKeys = []string{
	"cell.attachments",
	"cell.metadata.code_folding",
	"cell.metadata.editable",
	"cell.metadata.id",
	"cell.metadata.pycharm",
	"cell.metadata.slideshow",
	"cell.metadata.user_expressions",
	"metadata.celltoolbar",
	"metadata.colab.name",
	"metadata.colab.provenance",
	"metadata.interpreter",
	"metadata.notify_time",
	"metadata.toc",
	"metadata.toc-autonumbering",
	"metadata.toc-showcode",
	"metadata.toc-showmarkdowntxt", // cspell:ignore showmarkdowntxt
	"metadata.toc-showtags",
	"metadata.varInspector",
	"metadata.vscode",
}

// Nbstripout configures the nbstripout hook, or removes it when the
// repository has no notebooks.
func Nbstripout(_ context.Context, c *Context) error {
	if !c.HasNotebooks {
		c.Precommit.RemoveHook("nbstripout", "")
		return nil
	}
	return c.Precommit.UpdateSingleHookRepo(precommit.Repo{
		Repo: "https://github.com/kynan/nbstripout",
		Hooks: []precommit.Hook{{
			ID:   "nbstripout",
			Args: []string{"--drop-empty-cells", "--extra-keys", extraKeysArgument(c.Options.AllowedCellMetadata)},
		}},
	})
}

func extraKeysArgument(allowed []string) string {
	keys := make([]string, 0, len(nbstripoutExtraKeys))
	for _, key := range nbstripoutExtraKeys {
		if slices.Contains(allowed, strings.TrimPrefix(key, "cell.metadata.")) && strings.HasPrefix(key, "cell.metadata.") {
			continue
		}
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return strings.Join(keys, "\n") + "\n"
}
