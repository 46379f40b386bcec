package chain

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	artifactFileExtensionConstant         = ".json"
	unlinkedLibraryMarkerConstant         = "__"
	artifactReadErrorTemplateConstant     = "read artifact %s: %w"
	artifactDecodeErrorTemplateConstant   = "decode artifact %s: %w"
	artifactBytecodeErrorTemplateConstant = "decode bytecode of %s: %w"
	artifactEmptyBytecodeTemplateConstant = "artifact %s has no bytecode"
	artifactUnlinkedTemplateConstant      = "artifact %s has unlinked library references"
	artifactDirectoryMissingMessage       = "artifacts directory is not configured"
	hexPrefixConstant                     = "0x"
)

// ArtifactSource supplies compiled creation bytecode by contract name.
type ArtifactSource interface {
	Bytecode(contractName string) ([]byte, error)
}

type truffleArtifact struct {
	ContractName string `json:"contractName"`
	Bytecode     string `json:"bytecode"`
}

// DirectoryArtifacts reads Truffle-style build artifacts (<ContractName>.json) from a directory.
type DirectoryArtifacts struct {
	Directory string
}

// Bytecode returns the creation bytecode stored in the named artifact.
func (artifacts DirectoryArtifacts) Bytecode(contractName string) ([]byte, error) {
	if len(strings.TrimSpace(artifacts.Directory)) == 0 {
		return nil, errors.New(artifactDirectoryMissingMessage)
	}
	artifactPath := filepath.Join(artifacts.Directory, contractName+artifactFileExtensionConstant)
	contents, readError := os.ReadFile(artifactPath)
	if readError != nil {
		return nil, fmt.Errorf(artifactReadErrorTemplateConstant, contractName, readError)
	}

	var artifact truffleArtifact
	if decodeError := json.Unmarshal(contents, &artifact); decodeError != nil {
		return nil, fmt.Errorf(artifactDecodeErrorTemplateConstant, contractName, decodeError)
	}

	encodedBytecode := strings.TrimSpace(artifact.Bytecode)
	if len(encodedBytecode) == 0 || encodedBytecode == hexPrefixConstant {
		return nil, fmt.Errorf(artifactEmptyBytecodeTemplateConstant, contractName)
	}
	if !strings.HasPrefix(encodedBytecode, hexPrefixConstant) {
		encodedBytecode = hexPrefixConstant + encodedBytecode
	}
	if strings.Contains(encodedBytecode, unlinkedLibraryMarkerConstant) {
		return nil, fmt.Errorf(artifactUnlinkedTemplateConstant, contractName)
	}

	bytecode, bytecodeError := hexutil.Decode(encodedBytecode)
	if bytecodeError != nil {
		return nil, fmt.Errorf(artifactBytecodeErrorTemplateConstant, contractName, bytecodeError)
	}
	return bytecode, nil
}
