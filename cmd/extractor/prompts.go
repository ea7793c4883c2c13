package main

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/calebms/reddit-extractor/internal/normalizer"
	"github.com/calebms/reddit-extractor/internal/util"
)

// prompter collects run parameters interactively. Reads come from a single
// buffered reader so piped input behaves the same as a terminal session.
type prompter struct {
	in *bufio.Reader
}

func (p *prompter) ask(prompt string) string {
	fmt.Print(prompt)
	line, _ := p.in.ReadString('\n')
	return strings.TrimSpace(line)
}

func (p *prompter) askLower(prompt string) string {
	return strings.ToLower(p.ask(prompt))
}

func (p *prompter) url() string {
	for {
		raw := p.ask("Please enter the Reddit post URL: ")
		if raw == "" {
			fmt.Println("Error: URL cannot be empty.")
			continue
		}
		if util.ValidateThreadURL(raw) {
			return raw
		}
		fmt.Println("Error: Invalid Reddit URL format. Please try again.")
	}
}

// commentLimit returns the number of top-level comments to fetch, 0 for
// none, or All.
func (p *prompter) commentLimit() int {
	for {
		resp := p.askLower("Fetch comments? [N | all | no] (default: all): ")
		switch resp {
		case "", "all":
			return normalizer.All
		case "no":
			return 0
		}
		n, err := strconv.Atoi(resp)
		if err != nil {
			fmt.Println("Error: Invalid input. Please enter a number (e.g., 50), 'all', or 'no'.")
			continue
		}
		if n < 0 {
			fmt.Println("Error: Please enter a non-negative number.")
			continue
		}
		return n
	}
}

func (p *prompter) sortOrder() string {
	prompt := fmt.Sprintf("Sort comments by? [%s] (default: best): ", strings.Join(validSorts, " | "))
	for {
		resp := p.askLower(prompt)
		if resp == "" {
			return "best"
		}
		if s, ok := canonicalSort(resp); ok {
			return s
		}
		fmt.Printf("Error: Invalid sort order. Please choose from: %v\n", validSorts)
	}
}

func (p *prompter) depthLimit() int {
	for {
		resp := p.askLower("Maximum comment reply depth? [N | all] (default: all): ")
		if resp == "" || resp == "all" {
			return normalizer.All
		}
		n, err := strconv.Atoi(resp)
		if err != nil {
			fmt.Println("Error: Invalid input. Please enter a number (e.g., 5) or 'all'.")
			continue
		}
		if n < 0 {
			fmt.Println("Error: Please enter a non-negative number.")
			continue
		}
		return n
	}
}

func (p *prompter) outputFile() string {
	return p.ask("Output filename (leave blank to auto-generate): ")
}

func (p *prompter) yesNo(prompt string) bool {
	for {
		switch p.askLower(prompt) {
		case "", "n":
			return false
		case "y":
			return true
		default:
			fmt.Println("Error: Please enter 'y' or 'n'.")
		}
	}
}

func (p *prompter) printToConsole() bool {
	return p.yesNo("Print JSON to console instead of saving? [y/N] (default: N): ")
}

func (p *prompter) includeRawMedia() bool {
	return p.yesNo("Include verbose raw media details (e.g., all image resolutions, extensive metadata) in JSON? (This can significantly increase file size) [y/N] (default: N): ")
}

func (p *prompter) confirmMediaDownload() bool {
	return p.yesNo("Do you want to download the detected media? [y/N] (default: N): ")
}

func (p *prompter) mediaDownloadScope() string {
	for {
		resp := p.askLower("Download media from? [post | comments | both] (default: both): ")
		switch resp {
		case "":
			return "both"
		case "post", "comments", "both":
			return resp
		default:
			fmt.Println("Error: Please enter 'post', 'comments', or 'both'.")
		}
	}
}
