package ledger

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// certificateABI is the subset of the CertificateNFT contract the engine calls.
const certificateABI = `[
  {"type":"function","name":"mintFor","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"cid","type":"string"},{"name":"referrer","type":"address"}],"outputs":[]},
  {"type":"function","name":"mintVersion","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"cid","type":"string"}],"outputs":[]},
  {"type":"function","name":"revoke","stateMutability":"nonpayable","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"pause","stateMutability":"nonpayable","inputs":[],"outputs":[]},
  {"type":"function","name":"unpause","stateMutability":"nonpayable","inputs":[],"outputs":[]},
  {"type":"function","name":"transferOwnership","stateMutability":"nonpayable","inputs":[{"name":"newOwner","type":"address"}],"outputs":[]},
  {"type":"function","name":"setBaseGatewayURI","stateMutability":"nonpayable","inputs":[{"name":"uri","type":"string"}],"outputs":[]},
  {"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"hasCertificate","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"ownerOf","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
  {"type":"event","name":"Transfer","anonymous":false,"inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"tokenId","type":"uint256","indexed":true}]}
]`

// ContractABI returns the parsed contract interface.
func ContractABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(certificateABI))
}
