package main

import (
	"fmt"
	"strings"
	"time"

	"twig/internal/commit"
	"twig/internal/repository"
	"twig/shared/types"
	"twig/shared/utils"

	"github.com/fatih/color"
)

func printCommit(c *commit.Commit) {
	fmt.Printf("%s %s\n", color.YellowString("commit"), color.YellowString(c.ID.String()))
	if c.IsMerge() {
		parents := make([]string, len(c.Parents))
		for i, p := range c.Parents {
			parents[i] = p.String()
		}
		fmt.Printf("Merge: %s\n", strings.Join(parents, " "))
	}
	fmt.Printf("Date:  %s\n", c.Timestamp.Format(time.RFC1123Z))
	fmt.Printf("\n    %s\n\n", c.Message)
}

func printStatus(changes []shared.Change) {
	if len(changes) == 0 {
		fmt.Println("nothing to commit, working tree clean")
		return
	}

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Println("Changes not committed:")
	for _, c := range changes {
		switch c.Type {
		case shared.ChangeAdd:
			fmt.Printf("\t%s %s\n", green("A"), c.Path)
		case shared.ChangeModify:
			fmt.Printf("\t%s %s\n", yellow("M"), c.Path)
		case shared.ChangeDelete:
			fmt.Printf("\t%s %s\n", red("D"), c.Path)
		}
	}
}

func printDiffs(diffs []shared.FileDiff) {
	header := color.New(color.Bold)
	for _, d := range diffs {
		header.Printf("%s %s (+%d -%d)\n", d.Type, d.Path, d.Result.Stats.Additions, d.Result.Stats.Deletions)
		printColoredDiff(d.Result.Format())
	}
}

func printColoredDiff(diff string) {
	added := color.New(color.FgGreen)
	removed := color.New(color.FgRed)
	hunk := color.New(color.FgCyan)

	for _, line := range strings.Split(strings.TrimSuffix(diff, "\n"), "\n") {
		switch {
		case line == "":
			fmt.Println()
		case strings.HasPrefix(line, "@@"):
			hunk.Println(line)
		case strings.HasPrefix(line, "+"):
			added.Println(line)
		case strings.HasPrefix(line, "-"):
			removed.Println(line)
		default:
			fmt.Println(line)
		}
	}
}

func printMerge(result *repository.MergeResult) {
	for _, c := range result.Conflicts {
		fmt.Printf("%s %s\n", color.RedString("CONFLICT"), c.Filename)
	}
	for _, name := range utils.SortedKeys(result.Suggestions) {
		fmt.Printf("%s %s:\n%s\n", color.CyanString("Suggestion for"), name, result.Suggestions[name])
	}

	if !result.Committed() {
		fmt.Printf("Merge not committed: %d conflict(s) unresolved\n", len(result.Unresolved))
		return
	}
	if len(result.Conflicts) > 0 {
		fmt.Printf("Merged as %s, %d conflict(s) resolved by policy\n",
			color.YellowString(result.CommitID.String()), len(result.Conflicts))
		return
	}
	fmt.Printf("Merged as %s\n", color.YellowString(result.CommitID.String()))
}
