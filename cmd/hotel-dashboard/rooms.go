package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sieffosman/hotel-dashboard/internal/domain"
	"github.com/sieffosman/hotel-dashboard/internal/service"
	"github.com/sieffosman/hotel-dashboard/internal/views"
)

// cliLogFormat keeps logs on stderr, away from command output.
const cliLogFormat = "console"

func roomsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "Manage room records",
	}
	cmd.AddCommand(
		roomsListCmd(opts),
		roomsShowCmd(opts),
		roomsCreateCmd(opts),
		roomsUpdateCmd(opts),
		roomsDeleteCmd(opts),
		roomsPDFCmd(opts),
		roomsExportCmd(opts),
	)
	return cmd
}

// withApp wires the app for a rooms subcommand.
func withApp(opts *rootOptions, fn func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(opts, cliLogFormat)
		if err != nil {
			return err
		}
		defer a.close()
		return fn(cmd, args, a)
	}
}

func parseRoomID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid room id %q", arg)
	}
	return id, nil
}

func roomsListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List rooms, newest first",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, _ []string, a *app) error {
			list, err := a.svc.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if list.Malformed {
				fmt.Fprintln(cmd.ErrOrStderr(), views.MsgMalformedRooms)
			}
			if list.Len() == 0 {
				fmt.Fprintln(out, views.MsgNoRooms)
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCAPACITY\tFACILITIES\tCREATED")
			for _, r := range list.Rooms {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\n", r.ID, r.Name, r.Capacity, r.FacilitiesCount, r.CreatedAt)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			for _, i := range list.Invalid {
				fmt.Fprintf(cmd.ErrOrStderr(), "Invalid room data at index %d\n", i)
			}
			return nil
		}),
	}
}

func roomsShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one room",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseRoomID(args[0])
			if err != nil {
				return err
			}
			room, err := a.svc.API().GetRoom(cmd.Context(), id)
			if err != nil {
				return err
			}
			printRoom(cmd.OutOrStdout(), room, a.svc.API().ResolveImageURL(room.ImageURL))
			return nil
		}),
	}
}

func printRoom(w io.Writer, r *domain.Room, image string) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%d\n", r.ID)
	fmt.Fprintf(tw, "Name:\t%s\n", r.Name)
	fmt.Fprintf(tw, "Description:\t%s\n", r.Description)
	fmt.Fprintf(tw, "Capacity:\t%d\n", r.Capacity)
	fmt.Fprintf(tw, "Facilities:\t%d\n", r.FacilitiesCount)
	if image != "" {
		fmt.Fprintf(tw, "Image:\t%s\n", image)
	}
	fmt.Fprintf(tw, "Created:\t%s\n", r.CreatedAt)
	fmt.Fprintf(tw, "Updated:\t%s\n", r.UpdatedAt)
	_ = tw.Flush()
}

// uploadImage sends a local file to the temporary upload namespace.
func uploadImage(cmd *cobra.Command, a *app, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	return a.svc.API().UploadTempImage(cmd.Context(), filepath.Base(path), f)
}

func roomsCreateCmd(opts *rootOptions) *cobra.Command {
	draft := domain.NewRoomDraft()
	draft.Facilities = nil
	var image string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a room, uploading and finalizing its image",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, _ []string, a *app) error {
			if err := draft.Validate(); err != nil {
				return err
			}
			if image != "" {
				url, err := uploadImage(cmd, a, image)
				if err != nil {
					return fmt.Errorf("%s: %w", views.MsgUploadFailed, err)
				}
				draft.ImageURL = url
			}

			out, err := a.svc.Create(cmd.Context(), draft)
			if err != nil {
				return fmt.Errorf("%s: %w", views.MsgCreateFailed, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created room %d (%s)\n", out.Room.ID, out.Step)
			if out.Step == service.StepImagePending {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", views.MsgImagePending, out.FinalizeErr)
			}
			return nil
		}),
	}

	cmd.Flags().StringVar(&draft.Name, "name", "", "Room title (required)")
	cmd.Flags().StringVar(&draft.Description, "description", "", "Room description (required)")
	cmd.Flags().IntVar(&draft.Capacity, "capacity", domain.DefaultCapacity, "Number of guests")
	cmd.Flags().StringArrayVar(&draft.Facilities, "facility", nil, "Facility (repeatable; only the count is stored)")
	cmd.Flags().StringVar(&image, "image", "", "Image file to upload")
	return cmd
}

func roomsUpdateCmd(opts *rootOptions) *cobra.Command {
	var (
		name        string
		description string
		capacity    int
		facilities  []string
		image       string
	)

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update the given fields of a room and regenerate its PDF",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseRoomID(args[0])
			if err != nil {
				return err
			}

			var patch domain.RoomFields
			flags := cmd.Flags()
			if flags.Changed("name") {
				if strings.TrimSpace(name) == "" {
					return domain.NewValidationError("name", "title is required")
				}
				patch.Name = domain.StringPtr(name)
			}
			if flags.Changed("description") {
				if strings.TrimSpace(description) == "" {
					return domain.NewValidationError("description", "description is required")
				}
				patch.Description = domain.StringPtr(description)
			}
			if flags.Changed("capacity") {
				if capacity < 1 {
					return domain.NewValidationError("capacity", "capacity must be at least 1")
				}
				patch.Capacity = domain.IntPtr(capacity)
			}
			if flags.Changed("facility") {
				patch.FacilitiesCount = domain.IntPtr(domain.CountFacilities(facilities))
			}
			if image != "" {
				url, err := uploadImage(cmd, a, image)
				if err != nil {
					return fmt.Errorf("%s: %w", views.MsgUploadFailed, err)
				}
				patch.ImageURL = domain.StringPtr(url)
			}
			if patch.IsEmpty() {
				return errors.New("nothing to update: pass at least one field flag")
			}

			out, err := a.svc.Save(cmd.Context(), id, patch)
			if err != nil {
				return fmt.Errorf("%s: %w", views.MsgSaveFailed, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated room %d\n", out.Room.ID)
			if out.PDFErr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", views.MsgPDFNotRegenerated, out.PDFErr)
			}
			return nil
		}),
	}

	cmd.Flags().StringVar(&name, "name", "", "New title")
	cmd.Flags().StringVar(&description, "description", "", "New description")
	cmd.Flags().IntVar(&capacity, "capacity", 0, "New capacity")
	cmd.Flags().StringArrayVar(&facilities, "facility", nil, "Facility (repeatable; replaces the stored count)")
	cmd.Flags().StringVar(&image, "image", "", "Replacement image file")
	return cmd
}

func roomsDeleteCmd(opts *rootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a room",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseRoomID(args[0])
			if err != nil {
				return err
			}
			if !yes && !confirm(cmd, fmt.Sprintf("Are you sure? You are deleting room %d. [y/N] ", id)) {
				fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
				return nil
			}
			if err := a.svc.API().DeleteRoom(cmd.Context(), id); err != nil {
				return fmt.Errorf("%s: %w", views.MsgDeleteFailed, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted room %d\n", id)
			return nil
		}),
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func roomsPDFCmd(opts *rootOptions) *cobra.Command {
	var (
		outDir     string
		regenerate bool
	)

	cmd := &cobra.Command{
		Use:   "pdf ID",
		Short: "Download the PDF summary of a room",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseRoomID(args[0])
			if err != nil {
				return err
			}
			if regenerate {
				if err := a.svc.API().RegeneratePDF(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Regenerated PDF of room %d\n", id)
				return nil
			}

			room, err := a.svc.API().GetRoom(cmd.Context(), id)
			if err != nil {
				return err
			}
			name, data, err := a.svc.DownloadPDF(cmd.Context(), *room)
			if err != nil {
				return fmt.Errorf("%s: %w", views.MsgDownloadFailed, err)
			}
			path, err := localPDFPath(outDir, name)
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		}),
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Directory to save the PDF in")
	cmd.Flags().BoolVar(&regenerate, "regenerate", false, "Only regenerate the stored PDF, do not download")
	return cmd
}

var pathSeparators = strings.NewReplacer("/", "_", `\`, "_")

// localPDFPath keeps a server-provided file name inside dir.
func localPDFPath(dir, name string) (string, error) {
	safe := strings.TrimLeft(pathSeparators.Replace(name), ".")
	if !filepath.IsLocal(safe) {
		return "", fmt.Errorf("unsafe pdf file name %q", name)
	}
	return filepath.Join(dir, safe), nil
}

func roomsExportCmd(opts *rootOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the room list as an XLSX workbook",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, _ []string, a *app) error {
			data, err := a.svc.ExportRooms(cmd.Context())
			if err != nil {
				return err
			}
			path := out
			if path == "" {
				path = service.ExportFileName(time.Now())
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		}),
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default rooms_YYYYMMDD_HHMMSS.xlsx)")
	return cmd
}
