package cli

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/goliatone/go-wizard"
	"github.com/goliatone/go-wizard/pkg/staging"
	"github.com/spf13/cobra"
)

func photosCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "photos",
		Short: "Stage, classify and assign photos to slots",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stage <file>...",
		Short: "Stage photos and classify them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uploads := make([]staging.Upload, 0, len(args))
			for _, path := range args {
				info, err := os.Stat(path)
				if err != nil {
					return err
				}
				if info.IsDir() {
					return fmt.Errorf("%s is a directory", path)
				}
				abs, err := filepath.Abs(path)
				if err != nil {
					return err
				}
				uploads = append(uploads, staging.Upload{
					FileName:    filepath.Base(path),
					ContentType: mime.TypeByExtension(filepath.Ext(path)),
					SourcePath:  abs,
					Size:        info.Size(),
				})
			}
			if _, err := a.photos.AddStagingPhotos(cmd.Context(), uploads); err != nil {
				return err
			}
			a.photos.Wait()
			printPhotos(cmd.OutOrStdout(), a.photos.StagingPhotos())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List staged photos in arrival order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			printPhotos(w, a.photos.StagingPhotos())
			s := a.store.State()
			if len(s.Photos) > 0 {
				fmt.Fprintln(w)
				for _, slot := range wizard.UsedSlots(s) {
					if record, ok := s.Photos[slot]; ok {
						fmt.Fprintf(w, "%s %-16s %s\n", doneColor.Sprint("●"), slot, record.FileName)
					}
				}
			}
			return nil
		},
	})

	var minConfidence float64
	accept := &cobra.Command{
		Use:   "accept",
		Short: "Assign every unassigned photo to its best free suggestion",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			threshold := a.cfg.MinConfidence
			if cmd.Flags().Changed("min") {
				threshold = minConfidence
			}
			report := a.photos.AcceptAllSuggestions(cmd.Context(), threshold)
			w := cmd.OutOrStdout()
			for _, assigned := range report.Assigned {
				fmt.Fprintf(w, "%s → %s (%.0f%%)\n", idColor.Sprint(shortID(assigned.PhotoID)), assigned.SlotID, assigned.Confidence)
			}
			if n := len(report.Unassigned); n > 0 {
				fmt.Fprintln(w, partColor.Sprintf("%d photo(s) need a manual slot", n))
			}
			if n := len(report.Pending); n > 0 {
				fmt.Fprintln(w, dimColor.Sprintf("%d photo(s) still classifying", n))
			}
			if len(report.Assigned) == 0 && len(report.Unassigned) == 0 && len(report.Pending) == 0 {
				fmt.Fprintln(w, dimColor.Sprint("nothing to accept"))
			}
			return nil
		},
	}
	accept.Flags().Float64Var(&minConfidence, "min", 0, "minimum suggestion confidence (default WIZARD_MIN_CONFIDENCE)")
	cmd.AddCommand(accept)

	cmd.AddCommand(&cobra.Command{
		Use:   "assign <photo-id> <slot>",
		Short: "Assign a photo to a slot; an empty slot unassigns it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolvePhotoID(a.store.State(), args[0])
			if err != nil {
				return err
			}
			return a.photos.AssignPhotoToSlot(cmd.Context(), id, args[1])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <photo-id>",
		Short: "Remove a staged photo and free its slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolvePhotoID(a.store.State(), args[0])
			if err != nil {
				return err
			}
			return a.photos.RemoveStagingPhoto(id)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every staged photo",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.photos.ClearStagingPhotos()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "commit",
		Short: "Move assigned photos into the permanent photo record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			slots, err := a.photos.CommitAssigned(cmd.Context())
			if err != nil {
				return err
			}
			if len(slots) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), dimColor.Sprint("no assigned photos to commit"))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "committed %s\n", strings.Join(slots, ", "))
			return nil
		},
	})
	return cmd
}

// resolvePhotoID accepts a full id or an unambiguous prefix.
func resolvePhotoID(s wizard.State, ref string) (string, error) {
	if _, ok := s.StagingPhotos[ref]; ok {
		return ref, nil
	}
	var matches []string
	for id := range s.StagingPhotos {
		if strings.HasPrefix(id, ref) {
			matches = append(matches, id)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %q", wizard.ErrPhotoNotFound, ref)
	case 1:
		return matches[0], nil
	}
	return "", fmt.Errorf("photo id %q is ambiguous", ref)
}
