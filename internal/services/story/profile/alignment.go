package profile

const (
	alignmentStep = 30
	alignmentFar  = 70
)

// TrueNeutral is the label when both axes are neutral.
const TrueNeutral = "True Neutral"

func bucket(value int, positive, veryPositive, negative, veryNegative string) string {
	switch {
	case value >= alignmentFar:
		return veryPositive
	case value >= alignmentStep:
		return positive
	case value <= -alignmentFar:
		return veryNegative
	case value <= -alignmentStep:
		return negative
	default:
		return "Neutral"
	}
}

// DeriveAlignment combines the two alignment axes into a label such as
// "Lawful Good", "Chaotic Neutral" or "Neutral Evil".
func DeriveAlignment(p Profile) string {
	morality := bucket(p.GoodEvil, "Good", "Very Good", "Evil", "Very Evil")
	order := bucket(p.OrderChaos, "Lawful", "Very Lawful", "Chaotic", "Very Chaotic")

	switch {
	case morality == "Neutral" && order == "Neutral":
		return TrueNeutral
	case morality == "Neutral":
		return order + " Neutral"
	case order == "Neutral":
		return "Neutral " + morality
	default:
		return order + " " + morality
	}
}
