package namemigration

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	resumeReadTemplateConstant   = "read resume point %s: %w"
	resumeParseTemplateConstant  = "parse resume point %s: %w"
	resumeWriteTemplateConstant  = "save resume point %s: %w"
	resumeDeleteTemplateConstant = "delete resume point %s: %w"
	resumeFilePermissions        = 0o644
)

// LoadResumePoint reads the label stored in path. A missing file is not an error.
func LoadResumePoint(path string) (*common.Hash, error) {
	if len(path) == 0 {
		return nil, nil
	}
	contents, readError := os.ReadFile(path)
	if readError != nil {
		if errors.Is(readError, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf(resumeReadTemplateConstant, path, readError)
	}
	decoded, decodeError := hexutil.Decode(strings.TrimSpace(string(contents)))
	if decodeError != nil {
		return nil, fmt.Errorf(resumeParseTemplateConstant, path, decodeError)
	}
	label := common.BytesToHash(decoded)
	return &label, nil
}

func saveResumePoint(path string, label common.Hash) error {
	if len(path) == 0 {
		return nil
	}
	if writeError := os.WriteFile(path, []byte(label.Hex()+"\n"), resumeFilePermissions); writeError != nil {
		return fmt.Errorf(resumeWriteTemplateConstant, path, writeError)
	}
	return nil
}

func deleteResumePoint(path string) error {
	if len(path) == 0 {
		return nil
	}
	if removeError := os.Remove(path); removeError != nil && !errors.Is(removeError, os.ErrNotExist) {
		return fmt.Errorf(resumeDeleteTemplateConstant, path, removeError)
	}
	return nil
}
