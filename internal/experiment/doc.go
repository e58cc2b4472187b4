// Package experiment implements the round and trial state machine of a
// perceptual balance session.
//
// A Sequencer is built from a stimulus catalog. It pairs the catalog into
// complementary round sets once, then walks the driver through rounds:
//
//	for !seq.IsExperimentComplete() {
//		seq.AdvanceRound()
//		seq.AdvanceStimulus(experiment.AnnotationNone) // show first stimulus
//		for !seq.IsRoundComplete() {
//			obj, _ := seq.CurrentStimulus()
//			// present obj, wait for the experimenter
//			seq.AdvanceStimulus(annotation)
//		}
//	}
//	seq.Finish()
//
// Each AdvanceStimulus after the first of a round closes the trial on screen
// and pushes its TrialRecord to the Sink. Finish or Abort ends the session and
// is forwarded to the Sink exactly once.
//
// A Sequencer is not safe for concurrent use.
package experiment
