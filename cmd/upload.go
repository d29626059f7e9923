package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/chunkvault/chunk-upload-service/internal/uploader"
	"github.com/chunkvault/chunk-upload-service/pkg/util"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type uploadFlags struct {
	file        string // File to upload // 要上传的文件
	server      string // Server base URL // 服务端地址
	chunkSize   string // Chunk size // 分片大小
	concurrency int    // Concurrent transfers // 并发传输数量
	retries     int    // Max retries per chunk // 单片最大重试次数
	timeout     string // Overall timeout, empty for none // 整体超时时间，为空表示不限制
}

func init() {
	uploadEnv := new(uploadFlags)

	var uploadCommand = &cobra.Command{
		Use:   "upload -f file [-s server] [--chunk-size 5MB] [--concurrency 3]",
		Short: "Upload a file in chunks with resume support",
		Run: func(cmd *cobra.Command, args []string) {
			if err := runUpload(uploadEnv); err != nil {
				bootstrapLogger.Error("upload failed", zap.Error(err))
				os.Exit(1)
			}
		},
	}

	rootCmd.AddCommand(uploadCommand)
	fs := uploadCommand.Flags()
	fs.StringVarP(&uploadEnv.file, "file", "f", "", "file to upload")
	fs.StringVarP(&uploadEnv.server, "server", "s", "http://127.0.0.1:9000", "server base url")
	fs.StringVar(&uploadEnv.chunkSize, "chunk-size", "5MB", "chunk size, e.g. 5MB / 512KB")
	fs.IntVar(&uploadEnv.concurrency, "concurrency", 3, "concurrent chunk transfers")
	fs.IntVar(&uploadEnv.retries, "retries", 3, "max retries per chunk")
	fs.StringVar(&uploadEnv.timeout, "timeout", "", "overall timeout, e.g. 30m, empty for none")
	uploadCommand.MarkFlagRequired("file")
}

func runUpload(env *uploadFlags) error {
	chunkSize, err := util.ParseByteSize(env.chunkSize)
	if err != nil {
		return fmt.Errorf("invalid chunk size %q: %w", env.chunkSize, err)
	}

	f, err := os.Open(env.file)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", env.file)
	}

	transport := uploader.NewHTTPTransport(strings.TrimSpace(env.server), nil)
	manager, err := uploader.NewManager(transport, filepath.Base(env.file), f, info.Size(), &uploader.Config{
		ChunkSize:   chunkSize,
		Concurrency: env.concurrency,
		MaxRetries:  env.retries,
	}, bootstrapLogger)
	if err != nil {
		return err
	}

	ctx := context.Background()
	var cancel context.CancelFunc
	if env.timeout != "" {
		timeout, err := util.ParseDuration(env.timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", env.timeout, err)
		}
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// Ctrl+C aborts scheduling, in-flight transfers run to completion
	// Ctrl+C 中止调度，进行中的传输会自然结束
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		bootstrapLogger.Warn("interrupt received, aborting upload")
		manager.Abort()
	}()

	// Print events as they arrive
	// 实时打印事件
	go func() {
		for ev := range manager.Events() {
			switch ev.Kind {
			case uploader.EventProgress:
				fmt.Printf("\rprogress: %3d%%", ev.Progress)
			case uploader.EventChunkStatus:
				if ev.State == uploader.ChunkFailed {
					fmt.Printf("\nchunk %d failed permanently\n", ev.ChunkIndex)
				}
			}
		}
	}()

	started := time.Now()
	if err := manager.Start(ctx); err != nil {
		return err
	}

	result, err := manager.Wait(ctx)
	if err != nil {
		fmt.Println()
		return err
	}

	fmt.Printf("\nupload completed in %s\n", time.Since(started).Round(time.Millisecond))
	fmt.Printf("session:  %d\n", result.SessionID)
	fmt.Printf("digest:   %s\n", result.Digest)
	if len(result.Entries) > 0 {
		fmt.Printf("entries:  %s\n", strings.Join(result.Entries, ", "))
	}
	return nil
}
