package contracts

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/lmittmann/w3"
)

// Registry bindings shared by the legacy registry and the replacement registry.
var (
	FuncOwner            = w3.MustNewFunc("owner(bytes32)", "address")
	FuncSetSubnodeOwner  = w3.MustNewFunc("setSubnodeOwner(bytes32,bytes32,address)", "")
	FuncSetSubnodeRecord = w3.MustNewFunc("setSubnodeRecord(bytes32,bytes32,address,address,uint64)", "")
	FuncSetResolver      = w3.MustNewFunc("setResolver(bytes32,address)", "")
	FuncSetOwner         = w3.MustNewFunc("setOwner(bytes32,address)", "")
)

// Permanent registrar bindings, valid for both the legacy and the replacement registrar.
var (
	FuncAddController    = w3.MustNewFunc("addController(address)", "")
	FuncRemoveController = w3.MustNewFunc("removeController(address)", "")
	FuncRegister         = w3.MustNewFunc("register(uint256,address,uint256)", "uint256")
	FuncNameExpires      = w3.MustNewFunc("nameExpires(uint256)", "uint256")
)

// Ownable bindings.
var (
	FuncContractOwner     = w3.MustNewFunc("owner()", "address")
	FuncTransferOwnership = w3.MustNewFunc("transferOwnership(address)", "")
)

// Resolver bindings.
var (
	FuncSetAddr      = w3.MustNewFunc("setAddr(bytes32,address)", "")
	FuncSetInterface = w3.MustNewFunc("setInterface(bytes32,bytes4,address)", "")
)

// Root controller bindings.
var (
	FuncRootSetSubnodeOwner = w3.MustNewFunc("setSubnodeOwner(bytes32,address)", "")
	FuncSetController       = w3.MustNewFunc("setController(address,bool)", "")
	FuncControllers         = w3.MustNewFunc("controllers(address)", "bool")
)

// FuncOracle reads the DNSSEC oracle of a DNS registrar.
var FuncOracle = w3.MustNewFunc("oracle()", "address")

// Auction registrar bindings.
var (
	FuncShaBid             = w3.MustNewFunc("shaBid(bytes32,address,uint256,bytes32)", "bytes32")
	FuncStartAuctions      = w3.MustNewFunc("startAuctions(bytes32[])", "")
	FuncNewBid             = w3.MustNewFunc("newBid(bytes32)", "")
	FuncUnsealBid          = w3.MustNewFunc("unsealBid(bytes32,uint256,bytes32)", "")
	FuncFinalizeAuction    = w3.MustNewFunc("finalizeAuction(bytes32)", "")
	FuncTransferRegistrars = w3.MustNewFunc("transferRegistrars(bytes32)", "")
	FuncEntries            = w3.MustNewFunc("entries(bytes32)", "uint8,address,uint256,uint256,uint256")
)

// Registrar migration bindings.
var (
	FuncMigrateAll       = w3.MustNewFunc("migrateAll(uint256[])", "")
	FuncMigrateAllLegacy = w3.MustNewFunc("migrateAllLegacy(bytes32[])", "")
	FuncLegacyRegistrar  = w3.MustNewFunc("legacyRegistrar()", "address")
	FuncOldRegistrar     = w3.MustNewFunc("oldRegistrar()", "address")
	FuncNewRegistrar     = w3.MustNewFunc("newRegistrar()", "address")
)

// Auction entry modes reported by FuncEntries.
const (
	AuctionModeOpen uint8 = iota
	AuctionModeAuction
	AuctionModeOwned
	AuctionModeForbidden
	AuctionModeReveal
	AuctionModeNotYetAvailable
)

// Interface identifiers published by the owned resolver of the eth node.
var (
	InterfaceLegacyERC721        = [4]byte{0x6c, 0xcb, 0x2d, 0xf4}
	InterfaceERC721              = [4]byte{0x80, 0xac, 0x58, 0xcd}
	InterfaceRegistrarController = [4]byte{0x01, 0x8f, 0xac, 0x06}
)

// Words converts hashes to the fixed-size word list expected for bytes32[] arguments.
func Words(hashes []common.Hash) [][32]byte {
	words := make([][32]byte, 0, len(hashes))
	for _, hash := range hashes {
		words = append(words, hash)
	}
	return words
}
