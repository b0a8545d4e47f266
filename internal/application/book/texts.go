package book

// 不经模型生成的固定文本
const (
	PrefaceText = "What you hold in your hands is not a book of predictions, but a mirror. It reflects the intricate, invisible architecture of your inner world, drawn from a single, powerful moment in time: your beginning. The following chapters are not a breakdown of cosmic mechanics, but an exploration of the core themes, tensions, and potentials that make you who you are. This is a journey into the 'why' behind your drives, the 'how' of your connections, and the 'what' of your unique purpose. May it serve as a guide to deeper self-understanding and a celebration of the complex, beautiful story that is you."

	IntroText = "Before we delve into the specific themes of your personal narrative, let us first set the stage. This introduction serves as an overture, touching upon the overarching energetic signature of your being, the fundamental rhythm to which your life tends to move. It is the backdrop against which all the individual stories, conflicts, and triumphs detailed in the coming chapters will unfold."

	OutroText = "The journey through these pages has been a journey inward. We have explored the foundational pillars of your being, navigated the currents of your internal conflicts, and illuminated the pathways of your greatest potential. This book is a snapshot, a single interpretation of a vast and dynamic inner landscape. The map is not the territory. The ultimate author of your story is, and always will be, you. May you walk forward with a renewed sense of clarity, self-compassion, and purpose."

	DebugCallText = "Symbolic data based on birth details."

	DefaultTitle = "The Architecture of You"
)
