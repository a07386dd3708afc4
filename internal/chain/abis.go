package chain

// PredictionABI 预测合约最小 ABI（只含本程序用到的函数）
const PredictionABI = `[
	{
		"inputs": [],
		"name": "currentEpoch",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"name": "rounds",
		"outputs": [
			{"internalType": "uint256", "name": "epoch", "type": "uint256"},
			{"internalType": "uint256", "name": "startTimestamp", "type": "uint256"},
			{"internalType": "uint256", "name": "lockTimestamp", "type": "uint256"},
			{"internalType": "uint256", "name": "closeTimestamp", "type": "uint256"},
			{"internalType": "int256", "name": "lockPrice", "type": "int256"},
			{"internalType": "int256", "name": "closePrice", "type": "int256"},
			{"internalType": "uint256", "name": "lockOracleId", "type": "uint256"},
			{"internalType": "uint256", "name": "closeOracleId", "type": "uint256"},
			{"internalType": "uint256", "name": "totalAmount", "type": "uint256"},
			{"internalType": "uint256", "name": "bullAmount", "type": "uint256"},
			{"internalType": "uint256", "name": "bearAmount", "type": "uint256"},
			{"internalType": "uint256", "name": "rewardBaseCalAmount", "type": "uint256"},
			{"internalType": "uint256", "name": "rewardAmount", "type": "uint256"},
			{"internalType": "bool", "name": "oraclesCalled", "type": "bool"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "uint256", "name": "", "type": "uint256"},
			{"internalType": "address", "name": "", "type": "address"}
		],
		"name": "ledger",
		"outputs": [
			{"internalType": "uint8", "name": "position", "type": "uint8"},
			{"internalType": "uint256", "name": "amount", "type": "uint256"},
			{"internalType": "bool", "name": "claimed", "type": "bool"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "uint256", "name": "epoch", "type": "uint256"},
			{"internalType": "address", "name": "user", "type": "address"}
		],
		"name": "claimable",
		"outputs": [{"internalType": "bool", "name": "", "type": "bool"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "uint256", "name": "epoch", "type": "uint256"}],
		"name": "betBull",
		"outputs": [],
		"stateMutability": "payable",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "uint256", "name": "epoch", "type": "uint256"}],
		"name": "betBear",
		"outputs": [],
		"stateMutability": "payable",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "uint256[]", "name": "epochs", "type": "uint256[]"}],
		"name": "claim",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

// ERC20ABI ERC20 标准 ABI（余额、授权）
const ERC20ABI = `[
	{
		"inputs": [{"internalType": "address", "name": "account", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "spender", "type": "address"},
			{"internalType": "uint256", "name": "amount", "type": "uint256"}
		],
		"name": "approve",
		"outputs": [{"internalType": "bool", "name": "", "type": "bool"}],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "owner", "type": "address"},
			{"internalType": "address", "name": "spender", "type": "address"}
		],
		"name": "allowance",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

// RouterABI 交易所路由 ABI（询价 + 双向兑换）
const RouterABI = `[
	{
		"inputs": [
			{"internalType": "uint256", "name": "amountIn", "type": "uint256"},
			{"internalType": "address[]", "name": "path", "type": "address[]"}
		],
		"name": "getAmountsOut",
		"outputs": [{"internalType": "uint256[]", "name": "amounts", "type": "uint256[]"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "uint256", "name": "amountIn", "type": "uint256"},
			{"internalType": "uint256", "name": "amountOutMin", "type": "uint256"},
			{"internalType": "address[]", "name": "path", "type": "address[]"},
			{"internalType": "address", "name": "to", "type": "address"},
			{"internalType": "uint256", "name": "deadline", "type": "uint256"}
		],
		"name": "swapExactTokensForETH",
		"outputs": [{"internalType": "uint256[]", "name": "amounts", "type": "uint256[]"}],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "uint256", "name": "amountOutMin", "type": "uint256"},
			{"internalType": "address[]", "name": "path", "type": "address[]"},
			{"internalType": "address", "name": "to", "type": "address"},
			{"internalType": "uint256", "name": "deadline", "type": "uint256"}
		],
		"name": "swapExactETHForTokens",
		"outputs": [{"internalType": "uint256[]", "name": "amounts", "type": "uint256[]"}],
		"stateMutability": "payable",
		"type": "function"
	}
]`
