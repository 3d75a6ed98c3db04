package searcher

// Hyperparameters for MCTS

const CPuct = 0.95 // Exploration constant

// Evaluations outside ±ValueBound are treated as a broken evaluator
const ValueBound = 1e6
