package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that the external engines and project inputs are usable",
		Long: `Verify the project is runnable: the GIS engine and the niche-modeling
engine respond, the workspace is writable, and the configured input
files exist.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			out := cmd.OutOrStdout()
			eng := c.engines()
			failures := 0

			check := func(name string, err error) {
				if err != nil {
					failures++
					fmt.Fprintf(out, "  FAIL %-22s %v\n", name, err)
					return
				}
				fmt.Fprintf(out, "  ok   %s\n", name)
			}

			check("gis engine", eng.GIS.Check(cmd.Context()))
			check("niche engine", eng.Niche.Check(cmd.Context()))
			check("workspace", writable(c.Cfg.Workspace))
			check("dem", exists(c.Cfg.DEM))
			check("occurrence csv", exists(c.Cfg.Occurrence.CSV))
			check("validation csv", exists(c.Cfg.Occurrence.ValidationCSV))
			for name, path := range c.Cfg.BaseLayers {
				check("base layer "+name, exists(path))
			}
			for _, sc := range c.Cfg.Scenes {
				check("scene "+sc.ID, exists(sc.Path))
			}

			if failures > 0 {
				return fmt.Errorf("%d check(s) failed", failures)
			}
			fmt.Fprintln(out, "All checks passed.")
			return nil
		},
	}
}

func exists(path string) error {
	if path == "" {
		return fmt.Errorf("not configured")
	}
	_, err := os.Stat(path)
	return err
}

func writable(dir string) error {
	if dir == "" {
		return fmt.Errorf("not configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
