package escrow

// Contract ABIs for the Conditional Protocol escrow deployment.
// These ABIs define the interface for interacting with the deployed
// contracts; the contract implementation itself lives elsewhere.

// EscrowContractABI is the ABI for the conditional payment escrow contract.
const EscrowContractABI = `[
	{
		"constant": false,
		"inputs": [
			{"name": "receiver", "type": "address"},
			{"name": "arbiter", "type": "address"},
			{"name": "token", "type": "address"},
			{"name": "amount", "type": "uint256"},
			{"name": "termsHash", "type": "bytes32"},
			{"name": "deadline", "type": "uint256"}
		],
		"name": "createMediatedPayment",
		"outputs": [{"name": "id", "type": "uint256"}],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{"name": "receiver", "type": "address"},
			{"name": "token", "type": "address"},
			{"name": "amount", "type": "uint256"},
			{"name": "bondAmount", "type": "uint256"},
			{"name": "termsHash", "type": "bytes32"},
			{"name": "deadline", "type": "uint256"}
		],
		"name": "createBondedPayment",
		"outputs": [{"name": "id", "type": "uint256"}],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{"name": "receiver", "type": "address"},
			{"name": "token", "type": "address"},
			{"name": "amount", "type": "uint256"},
			{"name": "lockDuration", "type": "uint256"},
			{"name": "termsHash", "type": "bytes32"},
			{"name": "deadline", "type": "uint256"}
		],
		"name": "createTimelockedPayment",
		"outputs": [{"name": "id", "type": "uint256"}],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [{"name": "id", "type": "uint256"}],
		"name": "acceptBondedPayment",
		"outputs": [],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [{"name": "id", "type": "uint256"}],
		"name": "acceptTimelockedPayment",
		"outputs": [],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [{"name": "id", "type": "uint256"}],
		"name": "declineTimelockedPayment",
		"outputs": [],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [{"name": "id", "type": "uint256"}],
		"name": "claimTimelockedPayment",
		"outputs": [],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [{"name": "id", "type": "uint256"}],
		"name": "releasePayment",
		"outputs": [],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [{"name": "id", "type": "uint256"}],
		"name": "disputePayment",
		"outputs": [],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{"name": "id", "type": "uint256"},
			{"name": "releaseToReceiver", "type": "bool"}
		],
		"name": "resolveDispute",
		"outputs": [],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [{"name": "receiver", "type": "address"}],
		"name": "getPaymentsForReceiver",
		"outputs": [{"name": "", "type": "uint256[]"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [{"name": "sender", "type": "address"}],
		"name": "getPaymentsForSender",
		"outputs": [{"name": "", "type": "uint256[]"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [{"name": "id", "type": "uint256"}],
		"name": "getPayment",
		"outputs": [
			{
				"components": [
					{"name": "id", "type": "uint256"},
					{"name": "sender", "type": "address"},
					{"name": "receiver", "type": "address"},
					{"name": "arbiter", "type": "address"},
					{"name": "token", "type": "address"},
					{"name": "amount", "type": "uint256"},
					{"name": "bondAmount", "type": "uint256"},
					{"name": "deadline", "type": "uint256"},
					{"name": "challengePeriod", "type": "uint256"},
					{"name": "termsHash", "type": "bytes32"},
					{"name": "paymentType", "type": "uint8"},
					{"name": "status", "type": "uint8"}
				],
				"name": "",
				"type": "tuple"
			}
		],
		"type": "function"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "id", "type": "uint256"},
			{"indexed": true, "name": "sender", "type": "address"},
			{"indexed": true, "name": "receiver", "type": "address"},
			{"indexed": false, "name": "paymentType", "type": "uint8"},
			{"indexed": false, "name": "amount", "type": "uint256"}
		],
		"name": "PaymentCreated",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "id", "type": "uint256"},
			{"indexed": true, "name": "receiver", "type": "address"}
		],
		"name": "PaymentAccepted",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "id", "type": "uint256"},
			{"indexed": true, "name": "receiver", "type": "address"}
		],
		"name": "PaymentDeclined",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "id", "type": "uint256"},
			{"indexed": true, "name": "receiver", "type": "address"},
			{"indexed": false, "name": "amount", "type": "uint256"}
		],
		"name": "PaymentClaimed",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "id", "type": "uint256"},
			{"indexed": true, "name": "disputant", "type": "address"}
		],
		"name": "PaymentDisputed",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "id", "type": "uint256"},
			{"indexed": false, "name": "amount", "type": "uint256"}
		],
		"name": "PaymentReleased",
		"type": "event"
	}
]`

// ERC20ABI covers the token functions the client needs: bond approval
// before a bonded accept, plus balance and allowance reads.
const ERC20ABI = `[
	{
		"constant": true,
		"inputs": [{"name": "account", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"name": "", "type": "uint256"}],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{"name": "spender", "type": "address"},
			{"name": "amount", "type": "uint256"}
		],
		"name": "approve",
		"outputs": [{"name": "", "type": "bool"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [
			{"name": "owner", "type": "address"},
			{"name": "spender", "type": "address"}
		],
		"name": "allowance",
		"outputs": [{"name": "", "type": "uint256"}],
		"type": "function"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "owner", "type": "address"},
			{"indexed": true, "name": "spender", "type": "address"},
			{"indexed": false, "name": "value", "type": "uint256"}
		],
		"name": "Approval",
		"type": "event"
	}
]`
