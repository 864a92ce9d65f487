package clients

// escrowABI covers the escrow contract surface the storefront calls.
const escrowABI = `[
	{"type":"event","name":"IntentCreated","inputs":[{"name":"intentId","type":"uint256","indexed":true},{"name":"buyer","type":"address","indexed":true},{"name":"deposit","type":"uint256","indexed":false},{"name":"hashedProductLink","type":"bytes32","indexed":false},{"name":"hashedShippingAddr","type":"bytes32","indexed":false},{"name":"deadline","type":"uint256","indexed":false}],"anonymous":false},
	{"type":"event","name":"ProofSubmitted","inputs":[{"name":"intentId","type":"uint256","indexed":true},{"name":"solver","type":"address","indexed":true},{"name":"solverHashedProductLink","type":"bytes32","indexed":false},{"name":"solverHashedShippingAddr","type":"bytes32","indexed":false},{"name":"finalPrice","type":"uint256","indexed":false},{"name":"solverFee","type":"uint256","indexed":false},{"name":"solverPayout","type":"uint256","indexed":false},{"name":"leftoverBuyerRefund","type":"uint256","indexed":false}],"anonymous":false},
	{"type":"function","name":"SOLVER_FEE_BPS","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
	{"type":"function","name":"createIntent","inputs":[{"name":"_hashedProductLink","type":"bytes32"},{"name":"_hashedShippingAddr","type":"bytes32"},{"name":"_seconds","type":"uint256"}],"outputs":[],"stateMutability":"payable"},
	{"type":"function","name":"intents","inputs":[{"name":"","type":"uint256"}],"outputs":[{"name":"buyer","type":"address"},{"name":"deposit","type":"uint256"},{"name":"hashedProductLink","type":"bytes32"},{"name":"hashedShippingAddr","type":"bytes32"},{"name":"deadline","type":"uint256"},{"name":"fulfilled","type":"bool"}],"stateMutability":"view"},
	{"type":"function","name":"isSolverWhitelisted","inputs":[{"name":"solver","type":"address"}],"outputs":[{"name":"","type":"bool"}],"stateMutability":"view"},
	{"type":"function","name":"nextIntentId","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
	{"type":"function","name":"submitProof","inputs":[{"name":"_intentId","type":"uint256"},{"name":"_solverHashedProductLink","type":"bytes32"},{"name":"_solverHashedShippingAddr","type":"bytes32"},{"name":"_finalPrice","type":"uint256"}],"outputs":[],"stateMutability":"nonpayable"}
]`
