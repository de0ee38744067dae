package pbsat

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/utndatasystems/string-fingerprints/internal/errors"
	"github.com/utndatasystems/string-fingerprints/internal/ilp"
)

// maxLine stays under the 64KiB token limit of the OPB reader.
const maxLine = 60 * 1024

// WriteOPB writes pb in the OPB format read by gophersat. Variable i of the
// pseudo-boolean space is named x<i+1>.
func WriteOPB(w io.Writer, pb *ilp.PseudoBoolean) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "* #variable= %d #constraint= %d\n", pb.NumVars, len(pb.Constraints))

	var line strings.Builder
	emit := func() error {
		if line.Len() > maxLine {
			return errors.NewUnsupportedModelError(Name, fmt.Sprintf("OPB line of %d bytes exceeds %d", line.Len(), maxLine))
		}
		line.WriteByte('\n')
		_, err := bw.WriteString(line.String())
		line.Reset()
		return err
	}

	if len(pb.Objective) > 0 {
		line.WriteString("min:")
		writeTerms(&line, pb.Objective)
		line.WriteString(" ;")
		if err := emit(); err != nil {
			return err
		}
	}
	for _, c := range pb.Constraints {
		writeTerms(&line, c.Terms)
		op := ">="
		if c.Equal {
			op = "="
		}
		fmt.Fprintf(&line, " %s %d ;", op, c.Bound)
		if err := emit(); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeTerms(sb *strings.Builder, terms []ilp.PBTerm) {
	for _, t := range terms {
		fmt.Fprintf(sb, " +%d ", t.Weight)
		if t.Lit.Negated {
			sb.WriteByte('~')
		}
		fmt.Fprintf(sb, "x%d", t.Lit.Var+1)
	}
}
