package main

import (
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/machbase/neo-bayes/mods"
	"github.com/machbase/neo-bayes/mods/logging"
	"github.com/machbase/neo-bayes/mods/nums"
	"github.com/machbase/neo-bayes/mods/nums/bayes"
	"github.com/machbase/neo-bayes/mods/service/httpd"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

type cliRoot struct {
	Serve   ServeCmd   `cmd:"" help:"run the session HTTP service"`
	Fit     FitCmd     `cmd:"" help:"fit a synthetic dataset, print the posterior"`
	Demo    DemoCmd    `cmd:"" help:"stream observations, track the posterior"`
	Version VersionCmd `cmd:"" help:"show version"`

	LogFilename string `name:"log-filename" default:"-" placeholder:"<path>" help:"log file path, '-' for stdout"`
	LogLevel    string `name:"log-level" default:"INFO" enum:"TRACE,DEBUG,INFO,WARN,ERROR" help:"log level"`
}

func main() {
	cli := cliRoot{}
	ctx := kong.Parse(&cli,
		kong.Name("neo-bayes"),
		kong.HelpOptions{NoAppSummary: false, Compact: true, FlagsLast: true},
		kong.UsageOnError(),
	)
	logging.Configure(&logging.Config{
		Filename:     cli.LogFilename,
		Append:       true,
		DefaultLevel: cli.LogLevel,
	})
	ctx.FatalIfErrorf(ctx.Run())
}

type VersionCmd struct{}

func (cmd *VersionCmd) Run() error {
	fmt.Fprintf(os.Stdout, "neo-bayes %s\n", mods.VersionString())
	return nil
}

type ServeCmd struct {
	Listen     []string      `name:"listen" default:"tcp://127.0.0.1:5654" help:"listening address"`
	SessionTTL time.Duration `name:"session-ttl" default:"30m" help:"idle session expiration"`
	Debug      bool          `name:"debug" default:"false" help:"gin debug mode"`
}

func (cmd *ServeCmd) Run() error {
	log := logging.GetLog("neo-bayes")

	opts := []httpd.Option{
		httpd.OptionListenAddress(cmd.Listen...),
		httpd.OptionSessionTTL(cmd.SessionTTL),
	}
	if cmd.Debug {
		opts = append(opts, httpd.OptionDebugMode())
	} else {
		opts = append(opts, httpd.OptionReleaseMode())
	}
	svc, err := httpd.New(opts...)
	if err != nil {
		return err
	}
	if err := svc.Start(); err != nil {
		return err
	}
	log.Infof("neo-bayes %s started", mods.DisplayVersion())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	svc.Stop()
	log.Info("shutdown")
	return nil
}

type FitFlags struct {
	Intercept  float64 `name:"intercept" default:"-0.3" help:"ground-truth intercept"`
	Slope      float64 `name:"slope" default:"0.5" help:"ground-truth slope"`
	NoiseSigma float64 `name:"noise-sigma" default:"0.2" help:"observation noise stddev"`
	Alpha      float64 `name:"alpha" default:"2.0" help:"prior precision"`
	Seed       uint64  `name:"seed" default:"0" help:"random seed, 0 for time-based"`
}

func (f *FitFlags) newRegression() (*bayes.LinearRegression, error) {
	if f.NoiseSigma <= 0 {
		return nil, fmt.Errorf("noise-sigma must be positive, got %v", f.NoiseSigma)
	}
	if f.Alpha <= 0 {
		return nil, fmt.Errorf("alpha must be positive, got %v", f.Alpha)
	}
	return bayes.New(
		mat.NewVecDense(2, []float64{0, 0}),
		mat.NewSymDense(2, []float64{1 / f.Alpha, 0, 0, 1 / f.Alpha}),
		1/(f.NoiseSigma*f.NoiseSigma),
	)
}

func (f *FitFlags) seed() uint64 {
	if f.Seed == 0 {
		return uint64(time.Now().UnixNano())
	}
	return f.Seed
}

type FitCmd struct {
	FitFlags
	Points int     `name:"points" default:"100" help:"number of synthetic observations"`
	Stdevs float64 `name:"stdevs" default:"1.0" help:"predictive band half-width in stddevs"`
}

func (cmd *FitCmd) Run() error {
	reg, err := cmd.newRegression()
	if err != nil {
		return err
	}

	src := rand.NewSource(cmd.seed())
	uni := distuv.Uniform{Min: -1, Max: 1, Src: src}
	xs := make([]float64, cmd.Points)
	for i := range xs {
		xs[i] = uni.Rand()
	}
	ts := nums.LineObservations(nums.Line(cmd.Intercept, cmd.Slope), cmd.NoiseSigma, xs, src)

	if err := reg.Update(xs, ts); err != nil {
		return err
	}

	w := table.NewWriter()
	w.SetOutputMirror(os.Stdout)
	w.SetStyle(table.StyleLight)
	w.AppendHeader(table.Row{"WEIGHT", "TRUTH", "POSTERIOR MEAN", "POSTERIOR STDDEV"})
	w.AppendRow(table.Row{"w0 (intercept)", cmd.Intercept,
		fmt.Sprintf("%.6f", reg.Mean().AtVec(0)),
		fmt.Sprintf("%.6f", sqrtAt(reg, 0))})
	w.AppendRow(table.Row{"w1 (slope)", cmd.Slope,
		fmt.Sprintf("%.6f", reg.Mean().AtVec(1)),
		fmt.Sprintf("%.6f", sqrtAt(reg, 1))})
	w.Render()

	bx := []float64{-1, -0.5, 0, 0.5, 1}
	upper := reg.PredictionBound(bx, cmd.Stdevs)
	lower := reg.PredictionBound(bx, -cmd.Stdevs)
	center := reg.PredictionBound(bx, 0)

	w = table.NewWriter()
	w.SetOutputMirror(os.Stdout)
	w.SetStyle(table.StyleLight)
	w.AppendHeader(table.Row{"X", "LOWER", "MEAN", "UPPER"})
	for i, x := range bx {
		w.AppendRow(table.Row{x,
			fmt.Sprintf("%.6f", lower[i]),
			fmt.Sprintf("%.6f", center[i]),
			fmt.Sprintf("%.6f", upper[i])})
	}
	w.Render()
	return nil
}

type DemoCmd struct {
	FitFlags
	Rate     int           `name:"rate" default:"10" help:"observations per second"`
	Duration time.Duration `name:"duration" default:"10s" help:"how long to stream"`
	Batch    int           `name:"batch" default:"10" help:"observations per refit"`
}

func (cmd *DemoCmd) Run() error {
	if cmd.Batch < 1 {
		return fmt.Errorf("batch must be at least 1, got %d", cmd.Batch)
	}
	log := logging.GetLog("demo")

	reg, err := cmd.newRegression()
	if err != nil {
		return err
	}

	gen := nums.NewObservationGenerator(nums.Line(cmd.Intercept, cmd.Slope), nums.GeneratorConfig{
		XMin:         -1,
		XMax:         1,
		NoiseSigma:   cmd.NoiseSigma,
		SamplingRate: cmd.Rate,
		Seed:         cmd.seed(),
	})
	defer gen.Stop()

	// Update re-derives the posterior from the original prior, so the
	// stream is accumulated and refit with the full dataset each round.
	var xs, ts []float64
	deadline := time.After(cmd.Duration)
	for {
		select {
		case obs := <-gen.C:
			xs = append(xs, obs.X)
			ts = append(ts, obs.T)
			if len(xs)%cmd.Batch != 0 {
				continue
			}
			if err := reg.Update(xs, ts); err != nil {
				return err
			}
			log.Infof("n=%4d w0=%+.4f w1=%+.4f det(S)=%.3e",
				len(xs), reg.Mean().AtVec(0), reg.Mean().AtVec(1), mat.Det(reg.Covariance()))
		case <-deadline:
			if err := reg.Update(xs, ts); err != nil {
				return err
			}
			log.Infof("final n=%d w0=%+.4f w1=%+.4f (truth %+.4f %+.4f)",
				len(xs), reg.Mean().AtVec(0), reg.Mean().AtVec(1), cmd.Intercept, cmd.Slope)
			return nil
		}
	}
}

func sqrtAt(reg *bayes.LinearRegression, i int) float64 {
	v := reg.Covariance().At(i, i)
	if v < 0 {
		return 0
	}
	return math.Sqrt(v)
}
