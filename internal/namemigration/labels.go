package namemigration

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	labelLengthTemplateConstant = "line %d: label hash must be %d bytes, got %d"
	labelParseTemplateConstant  = "line %d: %w"
	labelReadTemplateConstant   = "read labels: %w"
	resumeMissingTemplate       = "resume label %s does not appear in the labels file"
)

// ReadLabels parses one hex label hash per line. When resumeAfter is set, every label up
// to and including it is skipped; a resume label absent from the input is an error.
func ReadLabels(reader io.Reader, resumeAfter *common.Hash) ([]common.Hash, error) {
	scanner := bufio.NewScanner(reader)
	skipping := resumeAfter != nil

	var labels []common.Hash
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 {
			continue
		}
		if !strings.HasPrefix(line, "0x") && !strings.HasPrefix(line, "0X") {
			line = "0x" + line
		}
		decoded, decodeError := hexutil.Decode(line)
		if decodeError != nil {
			return nil, fmt.Errorf(labelParseTemplateConstant, lineNumber, decodeError)
		}
		if len(decoded) != common.HashLength {
			return nil, fmt.Errorf(labelLengthTemplateConstant, lineNumber, common.HashLength, len(decoded))
		}
		label := common.BytesToHash(decoded)
		if skipping {
			if label == *resumeAfter {
				skipping = false
			}
			continue
		}
		labels = append(labels, label)
	}
	if scanError := scanner.Err(); scanError != nil {
		return nil, fmt.Errorf(labelReadTemplateConstant, scanError)
	}
	if skipping {
		return nil, fmt.Errorf(resumeMissingTemplate, resumeAfter.Hex())
	}
	return labels, nil
}
