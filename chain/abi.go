package chain

// ABI fragments for the ElectionFactory and Election contracts, matching the
// deployed Votereum contracts. Only the functions and events the gateway
// uses are included.

const electionFactoryABI = `[
	{
		"type": "function",
		"name": "createElection",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "title", "type": "string"},
			{"name": "description", "type": "string"},
			{"name": "startTime", "type": "uint256"},
			{"name": "endTime", "type": "uint256"}
		],
		"outputs": [{"name": "electionAddress", "type": "address"}]
	},
	{
		"type": "event",
		"name": "ElectionCreated",
		"anonymous": false,
		"inputs": [
			{"name": "electionAddress", "type": "address", "indexed": true},
			{"name": "creator", "type": "address", "indexed": true},
			{"name": "title", "type": "string", "indexed": false}
		]
	}
]`

const electionABI = `[
	{
		"type": "function",
		"name": "addCandidate",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "name", "type": "string"},
			{"name": "information", "type": "string"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "candidatesCount",
		"stateMutability": "view",
		"inputs": [],
		"outputs": [{"name": "", "type": "uint256"}]
	},
	{
		"type": "function",
		"name": "getCandidate",
		"stateMutability": "view",
		"inputs": [{"name": "candidateId", "type": "uint256"}],
		"outputs": [
			{"name": "id", "type": "uint256"},
			{"name": "name", "type": "string"},
			{"name": "information", "type": "string"},
			{"name": "voteCount", "type": "uint256"}
		]
	},
	{
		"type": "function",
		"name": "hasVoted",
		"stateMutability": "view",
		"inputs": [{"name": "voter", "type": "address"}],
		"outputs": [{"name": "", "type": "bool"}]
	},
	{
		"type": "function",
		"name": "castVote",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "candidateId", "type": "uint256"},
			{"name": "voter", "type": "address"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "totalVotes",
		"stateMutability": "view",
		"inputs": [],
		"outputs": [{"name": "", "type": "uint256"}]
	},
	{
		"type": "event",
		"name": "CandidateAdded",
		"anonymous": false,
		"inputs": [
			{"name": "candidateId", "type": "uint256", "indexed": true},
			{"name": "name", "type": "string", "indexed": false}
		]
	},
	{
		"type": "event",
		"name": "VoteCast",
		"anonymous": false,
		"inputs": [
			{"name": "candidateId", "type": "uint256", "indexed": true},
			{"name": "voter", "type": "address", "indexed": true}
		]
	}
]`
