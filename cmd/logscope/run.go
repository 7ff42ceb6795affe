package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/alienxp03/logscope/internal/config"
	"github.com/alienxp03/logscope/internal/detect"
	"github.com/alienxp03/logscope/internal/indexer"
	"github.com/alienxp03/logscope/internal/logdata"
)

func parseEncoding(name string) (detect.Encoding, error) {
	if name == "" {
		return detect.AutoDetect, nil
	}
	for _, e := range []detect.Encoding{
		detect.ASCII, detect.UTF8, detect.UTF16LE, detect.UTF16BE,
		detect.UTF32LE, detect.UTF32BE, detect.CP1251, detect.Big5,
		detect.GB18030, detect.ShiftJIS, detect.KOI8R,
	} {
		if strings.EqualFold(string(e), name) {
			return e, nil
		}
	}
	return "", fmt.Errorf("unknown encoding %q", name)
}

// runOne attaches path, waits for the initial index, then either dumps it,
// tails it, or runs a headless grep over it per cfg.
func runOne(path string, cfg config.Config) error {
	logger, err := config.NewLogger(cfg.LogLevel, cfg.LogToFile)
	if err != nil {
		return fmt.Errorf("logger setup: %w", err)
	}
	defer logger.Sync()

	l := logdata.New(logger)
	if cfg.PollIntervalMS > 0 {
		l.SetPollInterval(cfg.PollIntervalMS)
	}
	l.Attach(path)
	if status := <-l.LoadingFinished(); status != indexer.Successful {
		return fmt.Errorf("indexing ended with status %s", status)
	}
	if cfg.ForcedEncoding != detect.AutoDetect {
		l.Reload(cfg.ForcedEncoding)
		if status := <-l.LoadingFinished(); status != indexer.Successful {
			return fmt.Errorf("reindex with forced encoding ended with status %s", status)
		}
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	if cfg.Grep != "" {
		return runGrep(l, path, cfg, out)
	}
	return runDump(l, cfg, out)
}

func runDump(l *logdata.LogData, cfg config.Config, out *bufio.Writer) error {
	var printed logdata.LineNumber
	flushLines := func() error {
		total := l.GetLineCount()
		for ; printed < total; printed++ {
			line, err := l.GetExpandedLineString(printed)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, line)
		}
		return out.Flush()
	}

	if err := flushLines(); err != nil {
		return err
	}
	if !cfg.Follow {
		return nil
	}

	for status := range l.LoadingFinished() {
		if status != indexer.Successful {
			continue
		}
		if err := flushLines(); err != nil {
			return err
		}
	}
	return nil
}

func runGrep(l *logdata.LogData, path string, cfg config.Config, out *bufio.Writer) error {
	fd := l.CreateFilteredData()
	if err := fd.RunSearch(cfg.Grep, cfg.CaseInsensitive, 0, l.GetLineCount(), nil); err != nil {
		return err
	}

	printMatches := func() error {
		n := fd.GetNbLine()
		for i := logdata.LineNumber(0); i < n; i++ {
			line, err := fd.ExpandedLine(i)
			if err != nil {
				return err
			}
			srcLine, err := fd.GetMatchingLineNumber(i)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s:%d: %s\n", path, srcLine+1, line)
		}
		return out.Flush()
	}

	if err := printMatches(); err != nil {
		return err
	}
	if !cfg.Follow {
		return nil
	}

	for range l.FileChanged() {
		time.Sleep(10 * time.Millisecond) // let the coalesced reindex land
		if err := fd.UpdateSearch(l.GetLineCount(), nil); err != nil {
			return err
		}
		if err := printMatches(); err != nil {
			return err
		}
	}
	return nil
}
