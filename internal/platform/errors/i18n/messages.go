package i18n

// Error codes must match the codes defined in internal/platform/errors/codes.go.
const (
	CodeUnknown               = "UNKNOWN"
	CodeInvalidArgument       = "INVALID_ARGUMENT"
	CodeNodeNotFound          = "NODE_NOT_FOUND"
	CodeChoiceNotFound        = "CHOICE_NOT_FOUND"
	CodeChoiceNodeMismatch    = "CHOICE_NODE_MISMATCH"
	CodeInputRequired         = "INPUT_REQUIRED"
	CodeInvalidInputFormat    = "INVALID_INPUT_FORMAT"
	CodeCharacterNotFound     = "CHARACTER_NOT_FOUND"
	CodeCharacterDeceased     = "CHARACTER_DECEASED"
	CodeClassNotFound         = "CLASS_NOT_FOUND"
	CodeGenerationUnavailable = "GENERATION_UNAVAILABLE"
	CodeGenerationParseError  = "GENERATION_PARSE_ERROR"
	CodePersistenceFailure    = "PERSISTENCE_FAILURE"
)

var enUSMessages = map[Code]string{
	CodeUnknown:               "Something went wrong. Please try again later.",
	CodeInvalidArgument:       "The request is invalid: {{.Reason}}",
	CodeNodeNotFound:          "Story node {{.NodeID}} does not exist.",
	CodeChoiceNotFound:        "Choice {{.ChoiceID}} does not exist.",
	CodeChoiceNodeMismatch:    "That choice is no longer available from where you stand.",
	CodeInputRequired:         "This choice needs an answer before you can continue.",
	CodeInvalidInputFormat:    "That answer is not in the expected format{{if .Expected}} ({{.Expected}}){{end}}.",
	CodeCharacterNotFound:     "Character {{.CharacterID}} was not found.",
	CodeCharacterDeceased:     "This character's adventure has ended.",
	CodeClassNotFound:         "Class {{.ClassID}} does not exist.",
	CodeGenerationUnavailable: "The storyteller is unavailable right now. Please try again.",
	CodeGenerationParseError:  "The storyteller lost the thread. Please try again.",
	CodePersistenceFailure:    "Your progress could not be saved. Please try again.",
}

var ptBRMessages = map[Code]string{
	CodeUnknown:               "Algo deu errado. Tente novamente mais tarde.",
	CodeInvalidArgument:       "A requisição é inválida: {{.Reason}}",
	CodeNodeNotFound:          "O trecho {{.NodeID}} da história não existe.",
	CodeChoiceNotFound:        "A escolha {{.ChoiceID}} não existe.",
	CodeChoiceNodeMismatch:    "Essa escolha não está mais disponível daqui.",
	CodeInputRequired:         "Esta escolha precisa de uma resposta para continuar.",
	CodeInvalidInputFormat:    "Essa resposta não está no formato esperado{{if .Expected}} ({{.Expected}}){{end}}.",
	CodeCharacterNotFound:     "Personagem {{.CharacterID}} não encontrado.",
	CodeCharacterDeceased:     "A aventura deste personagem chegou ao fim.",
	CodeClassNotFound:         "A classe {{.ClassID}} não existe.",
	CodeGenerationUnavailable: "O narrador está indisponível no momento. Tente novamente.",
	CodeGenerationParseError:  "O narrador perdeu o fio da meada. Tente novamente.",
	CodePersistenceFailure:    "Não foi possível salvar seu progresso. Tente novamente.",
}
