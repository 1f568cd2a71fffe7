// cmd/token-programmer/commands.go
package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tamzrod/token-programmer/internal/image"
	"github.com/tamzrod/token-programmer/internal/publish"
	"github.com/tamzrod/token-programmer/internal/station"
	"github.com/tamzrod/token-programmer/internal/token"
)

// ---- run ----

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Program every inserted token with the configured image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()
			cfg, log := e.cfg, e.log

			// ---- image ----
			store := image.NewStore()
			switch {
			case cfg.Job.Source != "":
				w, err := image.NewWatcher(cfg.Job.Source, cfg.Job.Image, store,
					image.WithWatcherLogger(log),
					image.WithReloadHook(func(img *image.Image) {
						log.Info("image reloaded", "path", img.Path, "bytes", len(img.Data), "sum", img.Short())
					}),
				)
				if err != nil {
					return err
				}
				go func() {
					if err := w.Run(ctx); err != nil {
						log.Error("image watcher stopped", "err", err)
					}
				}()
			case cfg.Job.Image != "":
				if _, err := store.Load(cfg.Job.Image); err != nil {
					// jobs fail with no-image until fixed
					log.Warn("image load failed", "err", err)
				}
			default:
				log.Warn("no job.image configured; every job will fail")
			}

			// ---- job ----
			kind, err := token.ParseKind(cfg.Job.RequireKind)
			if err != nil {
				return err
			}
			job, err := station.NewJob(e.manager, store, e.harness,
				station.WithAddress(cfg.Job.Address),
				station.WithRequireKind(kind),
				station.WithEraseFirst(*cfg.Job.EraseFirst),
				station.WithProtect(cfg.Job.Protect),
				station.WithJobLogger(log),
				station.WithProgress(func(p station.Progress) {
					log.Debug("job progress", "job", p.JobID.String(), "phase", string(p.Phase), "done", p.Done, "total", p.Total)
				}),
			)
			if err != nil {
				return err
			}

			// ---- status + indicator ----
			opts := []station.Option{station.WithLogger(log)}

			sw, closeStatus, err := publish.Build(cfg.Status, cfg.Station.Name)
			if err != nil {
				return err
			}
			defer closeStatus()
			if sw != nil {
				opts = append(opts, station.WithStatusWriter(sw))
			}

			leds := cfg.Station.LEDs
			if simulate == "" && (leds.Inserted != "" || leds.Busy != "" || leds.Pass != "" || leds.Fail != "") {
				l, err := station.OpenLEDs(station.LEDPins{
					Inserted: leds.Inserted,
					Busy:     leds.Busy,
					Pass:     leds.Pass,
					Fail:     leds.Fail,
				})
				if err != nil {
					return err
				}
				opts = append(opts, station.WithIndicator(l))
			}

			st, err := station.New(e.state, e.manager, job, opts...)
			if err != nil {
				return err
			}

			go e.debounce.Run(ctx)

			log.Info("station running", "name", cfg.Station.Name)
			return st.Run(ctx)
		},
	}
}

// ---- info ----

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Classify the inserted token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()

			dev, err := e.device()
			if err != nil {
				return err
			}
			geo := dev.Geometry()
			region, err := dev.ProtectedRegion()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "kind:      %s\n", geo.Kind)
			fmt.Fprintf(out, "size:      %d bytes\n", geo.MemSize)
			fmt.Fprintf(out, "page:      %d bytes\n", geo.PageLen)
			fmt.Fprintf(out, "erase:     %d bytes\n", geo.EraseLen)
			fmt.Fprintf(out, "protected: %s\n", geo.RegionName(region))
			return nil
		},
	}
}

// ---- read ----

func readCmd() *cobra.Command {
	var (
		addr   uint32
		length int
		out    string
	)
	cmd := &cobra.Command{
		Use:   "read",
		Short: "Hex-dump (or save) a token range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()

			dev, err := e.device()
			if err != nil {
				return err
			}
			if length == 0 {
				length = int(dev.Geometry().MemSize) - int(addr)
			}

			if out == "" {
				w := bufio.NewWriter(cmd.OutOrStdout())
				if err := e.harness.Dump(dev, addr, length, w); err != nil {
					return err
				}
				return w.Flush()
			}

			buf := make([]byte, max(length, 0))
			if err := dev.Read(addr, buf); err != nil {
				return err
			}
			return os.WriteFile(out, buf, 0o644)
		},
	}
	cmd.Flags().Uint32Var(&addr, "addr", 0, "start address")
	cmd.Flags().IntVar(&length, "len", 0, "byte count (0 = to end of device)")
	cmd.Flags().StringVar(&out, "out", "", "write raw bytes to this file instead of dumping")
	return cmd
}

// ---- write ----

func writeCmd() *cobra.Command {
	var (
		addr    uint32
		noErase bool
	)
	cmd := &cobra.Command{
		Use:   "write <file>",
		Short: "Program a file into the token and read it back",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			dev, err := e.device()
			if err != nil {
				return err
			}
			if !noErase {
				if err := dev.Erase(addr, uint32(len(data))); err != nil {
					return err
				}
			}
			st, err := e.harness.Program(cmd.Context(), dev, addr, data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "programmed %d bytes at 0x%06X (%d chunks, %d retries)\n",
				st.Bytes, addr, st.Chunks, st.Retries)
			return nil
		},
	}
	cmd.Flags().Uint32Var(&addr, "addr", 0, "start address")
	cmd.Flags().BoolVar(&noErase, "no-erase", false, "skip erasing the target range first")
	return cmd
}

// ---- erase ----

func eraseCmd() *cobra.Command {
	var (
		addr   uint32
		length uint32
		all    bool
	)
	cmd := &cobra.Command{
		Use:   "erase",
		Short: "Erase a range, or the whole token with --all",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !all && length == 0 {
				return errors.New("erase: --len or --all required")
			}
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()

			dev, err := e.device()
			if err != nil {
				return err
			}
			if !all {
				return dev.Erase(addr, length)
			}
			if f, ok := dev.(*token.Flash); ok {
				e.log.Info("chip erase", "expected", f.ChipEraseTime())
				return f.EraseAllBlocking()
			}
			return dev.EraseAll()
		},
	}
	cmd.Flags().Uint32Var(&addr, "addr", 0, "start address")
	cmd.Flags().Uint32Var(&length, "len", 0, "byte count")
	cmd.Flags().BoolVar(&all, "all", false, "erase the whole device")
	return cmd
}

// ---- protect ----

func protectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "protect <region>",
		Short: "Set the protected region (none, quarter, half, all, ...)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()

			dev, err := e.device()
			if err != nil {
				return err
			}
			geo := dev.Geometry()
			r, err := geo.ParseRegion(args[0])
			if err != nil {
				return err
			}
			if err := dev.ProtectRegion(r); err != nil {
				return err
			}
			got, err := dev.ProtectedRegion()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "protected: %s\n", geo.RegionName(got))
			if got != r {
				return fmt.Errorf("protect: reads back as %s", geo.RegionName(got))
			}
			return nil
		},
	}
}

// ---- selftest ----

func selftestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "selftest",
		Short: "Run the destructive device self-test",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()

			dev, err := e.device()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			failed := 0
			for i, r := range e.harness.SelfTest(cmd.Context(), dev) {
				if r.Passed() {
					fmt.Fprintf(out, "case %d %-10s PASS\n", i, r.Name)
					continue
				}
				failed++
				fmt.Fprintf(out, "case %d %-10s FAIL %v\n", i, r.Name, r.Err)
			}
			if failed > 0 {
				return fmt.Errorf("selftest: %d case(s) failed", failed)
			}
			return nil
		},
	}
}
