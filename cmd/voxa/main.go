package main

import (
	"context"
	"flag"
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/voxalab/voxa-go/internal/adapter/api"
	"github.com/voxalab/voxa-go/internal/adapter/sqlite"
	"github.com/voxalab/voxa-go/internal/adapter/upload"
	"github.com/voxalab/voxa-go/internal/config"
	"github.com/voxalab/voxa-go/internal/domain"
	"github.com/voxalab/voxa-go/internal/poller"
	"github.com/voxalab/voxa-go/internal/registry"
)

func usage() {
	fmt.Fprint(os.Stderr, `usage: voxa <command> [flags] [args]

commands:
  login <username> <password>  obtain and print a bearer token
  register <username> <email> <password>
  submit <file>                upload a video and start processing
  watch <job-id>               poll a job until it finishes
  jobs                         list job history
  delete <job-id>              delete a job
`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	sub := os.Args[1]
	fs := flag.NewFlagSet("voxa "+sub, flag.ExitOnError)

	// Subcommand flags; unused ones are harmless.
	var (
		watchAfter = fs.Bool("watch", false, "After submit, poll until the job finishes")
		cached     = fs.Bool("cached", false, "List jobs from the local cache, offline")
		pageFlag   = fs.Int("page", 0, "Jump to a specific history page")
	)

	cfg, err := config.Load(fs, os.Args[2:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Debug)
	defer logger.Sync()
	log := logger.Sugar()

	client := api.NewClient(cfg.BaseURL, api.WithLogger(log))
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch sub {
	case "login":
		err = runLogin(ctx, fs, client)
	case "register":
		err = runRegister(ctx, fs, client)
	case "submit":
		err = runSubmit(ctx, fs, cfg, client, log, *watchAfter)
	case "watch":
		err = runWatch(ctx, fs.Arg(0), cfg, client, log)
	case "jobs":
		err = runJobs(ctx, cfg, client, log, *cached, *pageFlag)
	case "delete":
		err = runDelete(ctx, fs.Arg(0), cfg, client, log)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger(debug bool) *zap.Logger {
	if debug {
		return zap.Must(zap.NewDevelopment())
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return zap.Must(cfg.Build())
}

func runLogin(ctx context.Context, fs *flag.FlagSet, client *api.Client) error {
	if fs.NArg() < 2 {
		return fmt.Errorf("usage: voxa login <username> <password>")
	}
	token, err := client.Login(ctx, fs.Arg(0), fs.Arg(1))
	if err != nil {
		return err
	}
	fmt.Println(token.AccessToken)
	return nil
}

func runRegister(ctx context.Context, fs *flag.FlagSet, client *api.Client) error {
	if fs.NArg() < 3 {
		return fmt.Errorf("usage: voxa register <username> <email> <password>")
	}
	user, err := client.Register(ctx, fs.Arg(0), fs.Arg(1), fs.Arg(2))
	if err != nil {
		return err
	}
	fmt.Printf("registered %s (%s)\n", user.Username, user.ID)
	return nil
}

func runSubmit(ctx context.Context, fs *flag.FlagSet, cfg *config.Config, client *api.Client, log *zap.SugaredLogger, watchAfter bool) error {
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: voxa submit <file>")
	}
	path := fs.Arg(0)

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	size := info.Size()
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	render := func(sent, total int64) {
		fmt.Fprintf(os.Stderr, "\ruploading %s / %s",
			humanize.Bytes(uint64(sent)), humanize.Bytes(uint64(total)))
	}

	var job *domain.Job
	if size <= cfg.DirectUploadLimit {
		log.Debugw("direct submission", "file", path, "size", size)
		job, err = client.ProcessVideo(ctx, filepath.Base(path), f, api.ProcessOptions{}, render)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return err
		}
	} else {
		session, err := client.CreateUploadSession(ctx, filepath.Base(path), contentType, size)
		if err != nil {
			return err
		}
		transfer := upload.New(upload.WithLogger(log))
		err = transfer.Put(ctx, session.UploadURL, f, size, contentType, session.RequiredHeaders, render)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return err
		}
		job, err = client.ProcessUploaded(ctx, session.UploadID, api.ProcessOptions{})
		if err != nil {
			return err
		}
	}

	fmt.Printf("job %s submitted (%s)\n", job.ID, job.Status)
	if !watchAfter {
		return nil
	}
	return runWatch(ctx, job.ID, cfg, client, log)
}

// watchResult carries the terminal poll outcome to the main goroutine.
type watchResult struct {
	job     *domain.Job
	failure string
	err     string
}

// cliObserver renders poll events on the terminal.
type cliObserver struct {
	done chan watchResult
}

func (o *cliObserver) OnProgress(progress int, message string) {
	fmt.Fprintf(os.Stderr, "\r%3d%% %s", progress, message)
}

func (o *cliObserver) OnComplete(job *domain.Job) {
	o.done <- watchResult{job: job}
}

func (o *cliObserver) OnFailed(message string) {
	o.done <- watchResult{failure: message}
}

func (o *cliObserver) OnError(message string) {
	o.done <- watchResult{err: message}
}

func runWatch(ctx context.Context, jobID string, cfg *config.Config, client *api.Client, log *zap.SugaredLogger) error {
	if jobID == "" {
		return fmt.Errorf("usage: voxa watch <job-id>")
	}

	obs := &cliObserver{done: make(chan watchResult, 1)}
	p := poller.New(client, obs,
		poller.WithBaseInterval(cfg.PollInterval),
		poller.WithLogger(log),
	)
	p.Start(jobID)
	defer p.Close()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "\nstopped")
		return nil
	case res := <-obs.done:
		fmt.Fprintln(os.Stderr)
		switch {
		case res.job != nil:
			fmt.Printf("job %s completed\n", res.job.ID)
			if url := res.job.Result.PublicURL(); url != "" {
				fmt.Println(url)
			}
			return nil
		case res.failure != "":
			return fmt.Errorf("job failed: %s", res.failure)
		default:
			return fmt.Errorf("%s", res.err)
		}
	}
}

func runJobs(ctx context.Context, cfg *config.Config, client *api.Client, log *zap.SugaredLogger, cached bool, page int) error {
	cache, err := sqlite.New(cfg.CacheDBPath)
	if err != nil {
		return err
	}
	defer cache.Close()

	if cached {
		jobs, err := cache.RecentJobs(ctx, cfg.PageSize)
		if err != nil {
			return err
		}
		printJobs(jobs)
		if selected, err := cache.Selection(ctx); err == nil && selected != "" {
			fmt.Printf("selected: %s\n", selected)
		}
		return nil
	}

	reg := registry.New(client, client.HasToken,
		registry.WithPageSize(cfg.PageSize),
		registry.WithStore(cache),
		registry.WithLogger(log),
	)
	if err := reg.Load(ctx, true); err != nil {
		return err
	}
	if page > 0 {
		if err := reg.GoToPage(ctx, page); err != nil {
			return err
		}
	}

	snap := reg.State()
	printJobs(snap.Jobs)
	fmt.Printf("page %d/%d, %d jobs\n", snap.Page, snap.TotalPages, snap.Total)
	if snap.Selected != nil {
		fmt.Printf("selected: %s\n", snap.Selected.ID)
	}
	return nil
}

func runDelete(ctx context.Context, jobID string, cfg *config.Config, client *api.Client, log *zap.SugaredLogger) error {
	if jobID == "" {
		return fmt.Errorf("usage: voxa delete <job-id>")
	}
	if err := client.DeleteJob(ctx, jobID); err != nil {
		return err
	}

	// Refresh the registry view after a deletion.
	cache, err := sqlite.New(cfg.CacheDBPath)
	if err != nil {
		return err
	}
	defer cache.Close()
	reg := registry.New(client, client.HasToken,
		registry.WithPageSize(cfg.PageSize),
		registry.WithStore(cache),
		registry.WithLogger(log),
	)
	if err := reg.Load(ctx, false); err != nil {
		return err
	}
	fmt.Printf("job %s deleted\n", jobID)
	return nil
}

func printJobs(jobs []domain.Job) {
	for _, job := range jobs {
		updated := humanize.Time(time.Unix(job.UpdatedOrCreated(), 0))
		line := fmt.Sprintf("%s  %-10s %3d%%  %s", job.ID, job.Status, job.Progress, updated)
		if job.Actionable() {
			line += "  " + job.Result.PublicURL()
		}
		fmt.Println(line)
	}
}
