// Package res holds text resources shown by the command line.
package res

// AboutContent is the long description of the cyder command.
const AboutContent = `Cyder plays mp3 and wav files from the terminal.

Features:
- Plays the rest of the directory when a track ends, with repeat, shuffle and a play-next queue
- Pause and resume that replays the moment you missed
- Dreamify: a muffled copy of any track, toggled while it plays
- Conversion between mp3 and wav, and audio downloads, through ffmpeg and youtube-dl
- Installs ffmpeg on first use`
