package memory

import "mocktest-client/internal/domain"

func mcq(id, subject, topic, difficulty, text, correct, explanation string, options ...string) domain.Question {
	keys := []string{"A", "B", "C", "D"}
	opts := make(map[string]string, len(options))
	for i, o := range options {
		opts[keys[i]] = o
	}
	return domain.Question{
		ID:            id,
		Subject:       subject,
		Text:          text,
		Options:       opts,
		Topic:         topic,
		Difficulty:    difficulty,
		Marks:         1,
		CorrectAnswer: correct,
		Explanation:   explanation,
	}
}

// SampleQuestions is the built-in pool used when no question database is configured.
func SampleQuestions() []domain.Question {
	return []domain.Question{
		mcq("phy-001", "Physics", "Mechanics", domain.DifficultyEasy,
			"A body moving with constant velocity has an acceleration of:", "A",
			"Constant velocity means the velocity does not change, so acceleration is zero.",
			"Zero", "9.8 m/s^2", "Equal to its velocity", "Infinite"),
		mcq("phy-002", "Physics", "Mechanics", domain.DifficultyMedium,
			"The SI unit of impulse is:", "B",
			"Impulse equals change in momentum, measured in N s.",
			"N/s", "N s", "J", "W"),
		mcq("phy-003", "Physics", "Electrostatics", domain.DifficultyMedium,
			"Two charges are separated by distance r. If r is doubled, the force becomes:", "C",
			"Coulomb force varies as 1/r^2.",
			"Double", "Half", "One quarter", "Four times"),
		mcq("phy-004", "Physics", "Optics", domain.DifficultyEasy,
			"The focal length of a plane mirror is:", "D",
			"A plane mirror has infinite radius of curvature.",
			"Zero", "Positive", "Negative", "Infinite"),
		mcq("phy-005", "Physics", "Thermodynamics", domain.DifficultyHard,
			"In an adiabatic process, which quantity is exchanged with the surroundings?", "A",
			"An adiabatic process exchanges no heat, only work.",
			"Work only", "Heat only", "Both heat and work", "Neither"),
		mcq("phy-006", "Physics", "Modern Physics", domain.DifficultyHard,
			"The photoelectric effect demonstrates the:", "B",
			"Emission depends on frequency, showing light is quantized.",
			"Wave nature of light", "Particle nature of light", "Transverse nature of light", "Polarization of light"),

		mcq("chem-001", "Chemistry", "Atomic Structure", domain.DifficultyEasy,
			"The number of protons in an atom is its:", "A",
			"Atomic number is defined as the proton count.",
			"Atomic number", "Mass number", "Valency", "Isotope number"),
		mcq("chem-002", "Chemistry", "Chemical Bonding", domain.DifficultyMedium,
			"The bond angle in a water molecule is approximately:", "C",
			"Lone pair repulsion compresses the tetrahedral angle to about 104.5 degrees.",
			"180 degrees", "120 degrees", "104.5 degrees", "90 degrees"),
		mcq("chem-003", "Chemistry", "Equilibrium", domain.DifficultyMedium,
			"Adding a catalyst to a reaction at equilibrium:", "D",
			"Catalysts speed up both directions equally.",
			"Shifts it right", "Shifts it left", "Changes K", "Does not change the position"),
		mcq("chem-004", "Chemistry", "Organic Chemistry", domain.DifficultyHard,
			"The hybridization of carbon in ethyne is:", "B",
			"Each carbon forms two sigma bonds, giving sp hybridization.",
			"sp3", "sp", "sp2", "dsp2"),

		mcq("math-001", "Mathematics", "Algebra", domain.DifficultyEasy,
			"The roots of x^2 - 5x + 6 = 0 are:", "A",
			"The quadratic factors as (x-2)(x-3).",
			"2 and 3", "-2 and -3", "1 and 6", "-1 and -6"),
		mcq("math-002", "Mathematics", "Calculus", domain.DifficultyMedium,
			"The derivative of sin x is:", "C",
			"d/dx sin x = cos x.",
			"-cos x", "-sin x", "cos x", "tan x"),
		mcq("math-003", "Mathematics", "Probability", domain.DifficultyMedium,
			"Two fair coins are tossed. The probability of exactly one head is:", "B",
			"HT and TH are two of four equally likely outcomes.",
			"1/4", "1/2", "3/4", "1"),
		mcq("math-004", "Mathematics", "Calculus", domain.DifficultyHard,
			"The value of the integral of 1/x from 1 to e is:", "D",
			"ln e - ln 1 = 1.",
			"0", "e", "1/e", "1"),
	}
}
