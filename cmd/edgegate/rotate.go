package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/edgegate/internal/app"
	"github.com/dropDatabas3/edgegate/internal/rotation"
)

func newRotateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rotate",
		Short: "Run one key rotation",
		RunE: func(cmd *cobra.Command, args []string) error {
			rot, cleanup, err := app.BuildRotator(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := rot.Run(cmd.Context())
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), opts.out, res)
		},
	}
}

func newPlanCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show what the next rotation would do without changing anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			rot, cleanup, err := app.BuildRotator(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			plan, err := rot.Inspect(cmd.Context())
			if err != nil {
				return err
			}
			return printPlan(cmd.OutOrStdout(), opts.out, plan)
		},
	}
}

type planView struct {
	State        string   `json:"state"`
	Target       string   `json:"target"`
	ReplaceID    string   `json:"replaceId,omitempty"`
	KeepID       string   `json:"keepId,omitempty"`
	LegacyID     string   `json:"legacyId,omitempty"`
	TrustDuring  []string `json:"trustDuringDelete,omitempty"`
	TrustOutcome []string `json:"trustAfter"`
}

func viewOf(p rotation.Plan) planView {
	v := planView{
		State:        p.State.String(),
		Target:       p.Target,
		KeepID:       p.KeptID(),
		TrustDuring:  p.TrustBeforeDelete(),
		TrustOutcome: p.TrustAfterCreate("<new>"),
	}
	if p.Replace != nil {
		v.ReplaceID = p.Replace.ID
	}
	if p.Legacy != nil {
		v.LegacyID = p.Legacy.ID
	}
	return v
}

func printPlan(w io.Writer, format string, p rotation.Plan) error {
	v := viewOf(p)
	if format == "json" {
		return writeJSON(w, v)
	}
	fmt.Fprintf(w, "state:   %s\n", v.State)
	fmt.Fprintf(w, "create:  %s\n", v.Target)
	if v.ReplaceID != "" {
		fmt.Fprintf(w, "replace: %s (group narrowed to %v first)\n", v.ReplaceID, v.TrustDuring)
	}
	if v.KeepID != "" {
		fmt.Fprintf(w, "keep:    %s\n", v.KeepID)
	}
	fmt.Fprintf(w, "trust:   %v\n", v.TrustOutcome)
	if v.LegacyID != "" {
		fmt.Fprintf(w, "legacy:  %s (deleted)\n", v.LegacyID)
	}
	return nil
}

type resultView struct {
	State         string   `json:"state"`
	CreatedID     string   `json:"createdId"`
	CreatedName   string   `json:"createdName"`
	ReplacedID    string   `json:"replacedId,omitempty"`
	KeptID        string   `json:"keptId,omitempty"`
	TrustedKeyIDs []string `json:"trustedKeyIds"`
	LegacyDeleted bool     `json:"legacyDeleted"`
	DurationMS    int64    `json:"durationMs"`
}

func printResult(w io.Writer, format string, r *rotation.Result) error {
	v := resultView{
		State:         r.State.String(),
		CreatedID:     r.Created.ID,
		CreatedName:   r.Created.Name,
		ReplacedID:    r.ReplacedID,
		KeptID:        r.KeptID,
		TrustedKeyIDs: r.TrustedKeyIDs,
		LegacyDeleted: r.LegacyDeleted,
		DurationMS:    r.Duration.Milliseconds(),
	}
	if format == "json" {
		return writeJSON(w, v)
	}
	fmt.Fprintf(w, "created %s (%s) from state %s; trusted %v\n", v.CreatedName, v.CreatedID, v.State, v.TrustedKeyIDs)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
