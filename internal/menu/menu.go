// Package menu implements the trivial numeric-choice prompt the
// original launcher calls helper.confirm (spec.md section 1 describes
// the interactive menu as "trivial I/O", out of core; this package
// exists only so internal/driver has a caller-supplied UI sink to talk
// to).
package menu

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Confirm repeatedly prompts r/w with text until the user enters an
// integer within [lo, hi], then returns it. Non-numeric or
// out-of-range input reprompts rather than erroring, matching
// helper.confirm in the original launcher. If r runs out of input
// before a valid choice is read, it returns lo.
func Confirm(w io.Writer, r io.Reader, text string, lo, hi int) int {
	scanner := bufio.NewScanner(r)
	for {
		fmt.Fprint(w, text)
		if !scanner.Scan() {
			return lo
		}
		line := strings.TrimSpace(scanner.Text())
		n, err := strconv.Atoi(line)
		if err != nil || n < lo || n > hi {
			fmt.Fprintln(w, "Invalid choice. Try again.")
			continue
		}
		return n
	}
}

// ConfirmYesNo is the yes/no convenience wrapper internal/driver.UISink
// needs for install-directory creation consent: prompts with a
// trailing " [1] Yes [2] No: " and reports true for 1.
func ConfirmYesNo(w io.Writer, r io.Reader, prompt string) bool {
	text := prompt + " [1] Yes [2] No: "
	return Confirm(w, r, text, 1, 2) == 1
}
