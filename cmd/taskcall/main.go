package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rizwanabdullah11/taskcall/internal/call"
	"github.com/rizwanabdullah11/taskcall/internal/config"
	"github.com/rizwanabdullah11/taskcall/internal/domain"
	"github.com/rizwanabdullah11/taskcall/internal/media"
	"github.com/rizwanabdullah11/taskcall/internal/rtc"
	"github.com/rizwanabdullah11/taskcall/internal/store"
)

const helpText = `taskcall - Audio/video calls between task participants

Usage:
  taskcall -task TASK_ID [options]   start a call and print the call code
  taskcall -code CALL_CODE [options] join a call by code

Remote video is written to stdout (raw Annex-B for H264, IVF for VP8/VP9).
Status updates go to stderr. Pipe stdout to ffplay or ffmpeg for playback.

Environment Variables:
  TASKCALL_MONGO_URI  MongoDB connection string (required)
  TASKCALL_USER       Your user id (required)
  TASKCALL_USER_NAME  Your display name
  TASKCALL_DB         Database name (default: taskmanager)
  TASKCALL_STUN       Comma-separated STUN server URLs
  TASKCALL_LOG_LEVEL  logrus level (default: info)

Examples:
  # Start a video call on a task and watch the remote side
  taskcall -task 64f2... | ffplay -f ivf -

  # Join audio-only
  taskcall -code 3fa1b2c4d5e6a7b8 -audio-only > /dev/null

Options:
`

func main() {
	taskID := flag.String("task", "", "task id to start a call on")
	code := flag.String("code", "", "call code to join")
	audioOnly := flag.Bool("audio-only", false, "do not capture video")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, helpText)
		flag.PrintDefaults()
	}
	flag.Parse()

	if (*taskID == "") == (*code == "") {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "taskcall: %v\n", err)
		os.Exit(1)
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Step 1: store client
	st, err := store.NewMongo(ctx, cfg.MongoURI, cfg.Database, log)
	if err != nil {
		log.WithError(err).Fatal("connect store")
	}
	defer st.Close(context.Background())

	// Step 2: local media and peer wiring
	capturer := media.NewCapturer(log)
	newPeer := func(stream *media.Stream, events domain.PeerEvents) (domain.PeerEngine, error) {
		return rtc.NewPeer(rtc.Config{
			STUNURLs: cfg.STUNURLs,
			VideoOut: os.Stdout,
			Log:      log,
		}, stream, events)
	}
	mgr := call.NewManager(st, st, capturer, newPeer, log)

	self := domain.Identity{UserID: cfg.UserID, Name: cfg.UserName}
	opts := call.Options{Video: !*audioOnly}

	// Step 3: start or join
	var sess *call.Session
	if *taskID != "" {
		sess, err = mgr.StartCall(ctx, self, *taskID, opts)
	} else {
		sess, err = mgr.JoinCall(ctx, self, *code, opts)
	}
	if err != nil {
		sess.End(context.Background())
		log.WithError(err).Fatal("call failed")
	}
	if c := sess.Code(); c != "" && *taskID != "" {
		fmt.Fprintf(os.Stderr, "call code: %s\n", c)
		fmt.Fprintln(os.Stderr, "waiting for peer, Ctrl-C to hang up")
	}

	// Step 4: hang up on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	ossignal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.WithField("signal", sig.String()).Info("hanging up")
		sess.End(context.Background())
	}()

	// Step 5: stream status until the session ends
	for status := range sess.Updates() {
		line := status.State.String()
		if status.RemoteUser != "" {
			line += " with " + status.RemoteUser
		}
		if status.State == domain.StateConnected {
			line += " " + fmtDuration(status.Duration)
		}
		if status.Error != domain.ErrKindNone {
			line += " (" + string(status.Error) + ")"
		}
		fmt.Fprintf(os.Stderr, "\r%-60s", line)
	}
	fmt.Fprintln(os.Stderr)

	<-sess.Done()
	log.Info("done")
}

// fmtDuration renders elapsed call time as mm:ss.
func fmtDuration(d time.Duration) string {
	s := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}
